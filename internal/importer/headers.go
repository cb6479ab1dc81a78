package importer

import (
	"strings"
)

type fieldDef struct {
	name     string
	label    string
	required bool
	aliases  []string
}

// Canonical field names. They double as keys of RawRow.Cells.
const (
	FieldCompanyName   = "companyName"
	FieldBusinessType  = "businessType"
	FieldAddress       = "address"
	FieldCountry       = "country"
	FieldPhone         = "phone"
	FieldEmail         = "email"
	FieldWebsite       = "website"
	FieldCreditTerms   = "creditTerms"
	FieldCreditLimit   = "creditLimit"
	FieldBusinessPorts = "businessPorts"
	FieldStatus        = "status"
	FieldRemarks       = "remarks"

	FieldPortCode     = "portCode"
	FieldPortName     = "portName"
	FieldPortLongName = "portLongName"
	FieldPortType     = "portType"
	FieldParentPort   = "parentPort"

	FieldContainerNumber   = "containerNumber"
	FieldContainerCategory = "containerCategory"
	FieldContainerType     = "containerType"
	FieldContainerSize     = "containerSize"
	FieldContainerClass    = "containerClass"
	FieldCapacity          = "capacity"
	FieldCapacityUnit      = "capacityUnit"
	FieldManufacturer      = "manufacturer"
	FieldBuildYear         = "buildYear"
	FieldGrossWeight       = "grossWeight"
	FieldTareWeight        = "tareWeight"
	FieldInitialSurvey     = "initialSurveyDate"
	FieldOwnership         = "ownership"
	FieldLessor            = "lessor"
	FieldLeasingRefNo      = "leasingRefNo"
	FieldLeaseRentPerDay   = "leaseRentPerDay"
	FieldOnHireDate        = "onHireDate"
	FieldOnHireLocation    = "onHireLocation"
	FieldOnHireDepot       = "onHireDepot"
	FieldInspectionDate    = "inspectionDate"
	FieldInspectionType    = "inspectionType"
	FieldNextDueDate       = "nextDueDate"
	FieldCertificate       = "certificate"
	FieldReportDate        = "reportDate"
	FieldReportDocument    = "reportDocument"
)

var companyFields = []fieldDef{
	{name: FieldCompanyName, label: "Company Name", required: true, aliases: []string{"Company", "Name", "Company Name"}},
	{name: FieldBusinessType, label: "Business Type", aliases: []string{"Business Types", "Role", "Company Type"}},
	{name: FieldAddress, label: "Address", aliases: []string{"Company Address"}},
	{name: FieldCountry, label: "Country", required: true, aliases: []string{"Country Name", "Country ID"}},
	{name: FieldPhone, label: "Phone", aliases: []string{"Phone Number", "Contact Number", "Mobile"}},
	{name: FieldEmail, label: "Email", aliases: []string{"Email ID", "E-mail", "Email Address"}},
	{name: FieldWebsite, label: "Website", aliases: []string{"Website URL", "Web"}},
	{name: FieldCreditTerms, label: "Credit Terms"},
	{name: FieldCreditLimit, label: "Credit Limit"},
	{name: FieldBusinessPorts, label: "Business Ports", aliases: []string{"Ports", "Associated Ports"}},
	{name: FieldStatus, label: "Status"},
	{name: FieldRemarks, label: "Remarks", aliases: []string{"Notes"}},
}

var portFields = []fieldDef{
	{name: FieldPortCode, label: "Port Code", required: true, aliases: []string{"Code"}},
	{name: FieldPortName, label: "Port Name", required: true, aliases: []string{"Short Name", "Port Short Name"}},
	{name: FieldPortLongName, label: "Port Long Name", required: true, aliases: []string{"Long Name", "Full Name"}},
	{name: FieldPortType, label: "Port Type", required: true, aliases: []string{"Type"}},
	{name: FieldParentPort, label: "Parent Port", aliases: []string{"Parent Port Name", "Parent Port ID"}},
	{name: FieldCountry, label: "Country", required: true, aliases: []string{"Country Name", "Country ID"}},
	{name: FieldStatus, label: "Status"},
}

var containerFields = []fieldDef{
	{name: FieldContainerNumber, label: "Container Number", required: true, aliases: []string{"Container No", "Container No.", "Unit Number"}},
	{name: FieldContainerCategory, label: "Container Category", required: true, aliases: []string{"Category"}},
	{name: FieldContainerType, label: "Container Type", required: true, aliases: []string{"Type"}},
	{name: FieldContainerSize, label: "Container Size", required: true, aliases: []string{"Size"}},
	{name: FieldContainerClass, label: "Container Class", required: true, aliases: []string{"Class", "Tank Class"}},
	{name: FieldCapacity, label: "Capacity", required: true},
	{name: FieldCapacityUnit, label: "Capacity Unit", required: true, aliases: []string{"Unit"}},
	{name: FieldManufacturer, label: "Manufacturer", required: true, aliases: []string{"Manufacturer Name"}},
	{name: FieldBuildYear, label: "Build Year", required: true, aliases: []string{"Year of Build", "YOM", "Manufacture Year"}},
	{name: FieldGrossWeight, label: "Gross Weight", aliases: []string{"Max Gross Weight"}},
	{name: FieldTareWeight, label: "Tare Weight"},
	{name: FieldInitialSurvey, label: "Initial Survey Date", aliases: []string{"Initial Survey"}},
	{name: FieldOwnership, label: "Ownership", required: true, aliases: []string{"Ownership Type"}},
	{name: FieldLessor, label: "Lessor Name", aliases: []string{"Lessor", "Leasor", "Leasor Name"}},
	{name: FieldLeasingRefNo, label: "Leasing Ref No", aliases: []string{"Lease Ref No", "Leasing Reference", "Reference Number"}},
	{name: FieldLeaseRentPerDay, label: "Lease Rent Per Day", aliases: []string{"Rent Per Day"}},
	{name: FieldOnHireDate, label: "On Hire Date", required: true, aliases: []string{"On-Hire Date", "Onhire Date"}},
	{name: FieldOnHireLocation, label: "On Hire Location", required: true, aliases: []string{"On Hire Port", "Port"}},
	{name: FieldOnHireDepot, label: "On Hire Depot", required: true, aliases: []string{"Depot", "On Hire Depot Name"}},
	{name: FieldInspectionDate, label: "Inspection Date", aliases: []string{"Last Inspection Date"}},
	{name: FieldInspectionType, label: "Inspection Type"},
	{name: FieldNextDueDate, label: "Next Due Date", aliases: []string{"Next Inspection Due", "Next Due Date (5Y)", "Next Test Due"}},
	{name: FieldCertificate, label: "Certificate", aliases: []string{"Certificate Number", "Certificate No"}},
	{name: FieldReportDate, label: "On Hire Report Date", aliases: []string{"Report Date"}},
	{name: FieldReportDocument, label: "Report Document", aliases: []string{"On Hire Report Document"}},
	{name: FieldRemarks, label: "Remarks", aliases: []string{"Notes"}},
}

type aliasTable struct {
	fields  []fieldDef
	byAlias map[string]string
	labels  map[string]string
}

var aliasTables = map[Category]aliasTable{
	CategoryCompany:   newAliasTable(companyFields),
	CategoryPort:      newAliasTable(portFields),
	CategoryContainer: newAliasTable(containerFields),
}

func newAliasTable(fields []fieldDef) aliasTable {
	table := aliasTable{
		fields:  fields,
		byAlias: map[string]string{},
		labels:  map[string]string{},
	}
	for _, field := range fields {
		table.labels[field.name] = field.label
		table.byAlias[normalizeHeaderKey(field.name)] = field.name
		table.byAlias[normalizeHeaderKey(field.label)] = field.name
		for _, alias := range field.aliases {
			table.byAlias[normalizeHeaderKey(alias)] = field.name
		}
	}
	return table
}

// Canonicalize maps a column label to its canonical field name. Unknown
// headers are returned unchanged.
func Canonicalize(category Category, header string) string {
	table, ok := aliasTables[category]
	if !ok {
		return header
	}
	if name, ok := table.byAlias[normalizeHeaderKey(header)]; ok {
		return name
	}
	return header
}

// Label returns the human column label of a canonical field.
func Label(category Category, field string) string {
	if label, ok := aliasTables[category].labels[field]; ok {
		return label
	}
	return field
}

func RequiredHeaders(category Category) []string {
	required := []string{}
	for _, field := range aliasTables[category].fields {
		if field.required {
			required = append(required, field.name)
		}
	}
	return required
}

// MissingHeaders reports the labels of required columns absent from headers.
func MissingHeaders(category Category, headers []string) []string {
	present := map[string]struct{}{}
	for _, header := range headers {
		present[Canonicalize(category, header)] = struct{}{}
	}
	missing := []string{}
	for _, field := range RequiredHeaders(category) {
		if _, ok := present[field]; !ok {
			missing = append(missing, Label(category, field))
		}
	}
	return missing
}

// TemplateHeaders returns the column labels of a category in template order.
func TemplateHeaders(category Category) []string {
	fields := aliasTables[category].fields
	labels := make([]string, 0, len(fields))
	for _, field := range fields {
		labels = append(labels, field.label)
	}
	return labels
}

func normalizeHeaderKey(raw string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "/", "", "(", "", ")", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(raw)))
}
