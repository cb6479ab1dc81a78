package importer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BusinessPort struct {
	PortID int `json:"portId"`
}

type CompanyPayload struct {
	CompanyName   string         `json:"companyName"`
	BusinessType  string         `json:"businessType,omitempty"`
	Address       string         `json:"address,omitempty"`
	CountryID     int            `json:"countryId"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	Website       string         `json:"website,omitempty"`
	CreditTerms   string         `json:"creditTerms,omitempty"`
	CreditLimit   string         `json:"creditLimit,omitempty"`
	Status        string         `json:"status"`
	Remarks       string         `json:"remarks,omitempty"`
	BusinessPorts []BusinessPort `json:"businessPorts"`
}

type PortPayload struct {
	PortCode     string `json:"portCode"`
	PortName     string `json:"portName"`
	PortLongName string `json:"portLongName"`
	PortType     string `json:"portType"`
	ParentPortID *int   `json:"parentPortId"`
	CountryID    int    `json:"countryId"`
	Status       string `json:"status"`
}

type LeasingInfoPayload struct {
	OwnershipType   string `json:"ownershipType"`
	LeasingRefNo    string `json:"leasingRefNo"`
	LeasorID        *int   `json:"leasoraddressbookId,omitempty"`
	OnHireDate      string `json:"onHireDate"`
	PortLocationID  int    `json:"portLocationId"`
	OnHireDepotID   int    `json:"onHireDepotaddressbookId"`
	LeaseRentPerDay string `json:"leaseRentPerDay,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	InventoryID     int    `json:"inventoryId,omitempty"`
}

type CertificatePayload struct {
	InspectionDate    string `json:"inspectionDate"`
	InspectionType    string `json:"inspectionType,omitempty"`
	NextDueDate       string `json:"nextDueDate,omitempty"`
	CertificateNumber string `json:"certificate,omitempty"`
}

type OnHireReportPayload struct {
	ReportDate     string `json:"reportDate"`
	ReportDocument string `json:"reportDocument,omitempty"`
}

// InventoryPayload is the container create request. PortID and OnHireDepotID
// are set only for owned units; leased units carry them inside LeasingInfo.
type InventoryPayload struct {
	ContainerNumber          string                `json:"containerNumber"`
	ContainerCategory        string                `json:"containerCategory"`
	ContainerType            string                `json:"containerType"`
	ContainerSize            string                `json:"containerSize"`
	ContainerClass           string                `json:"containerClass"`
	Capacity                 string                `json:"capacity"`
	CapacityUnit             string                `json:"capacityUnit"`
	Manufacturer             string                `json:"manufacturer"`
	BuildYear                int                   `json:"buildYear"`
	GrossWeight              string                `json:"grossWeight,omitempty"`
	TareWeight               string                `json:"tareWeight,omitempty"`
	InitialSurveyDate        string                `json:"initialSurveyDate,omitempty"`
	OwnershipType            string                `json:"ownershipType"`
	PortID                   *int                  `json:"portId,omitempty"`
	OnHireDepotID            *int                  `json:"onHireDepotaddressbookId,omitempty"`
	Status                   string                `json:"status"`
	Remarks                  string                `json:"remarks,omitempty"`
	LeasingInfo              []LeasingInfoPayload  `json:"leasingInfo,omitempty"`
	PeriodicTankCertificates []CertificatePayload  `json:"periodicTankCertificates"`
	OnHireReport             []OnHireReportPayload `json:"onHireReport"`
}

// ContainerPlan is everything one container row turns into. Leasing is the
// dependent record created after the inventory for owned units.
type ContainerPlan struct {
	Inventory InventoryPayload
	Leasing   *LeasingInfoPayload
}

type CompanyRefs struct {
	CountryID       int
	BusinessPortIDs []int
}

type PortRefs struct {
	CountryID    int
	ParentPortID *int
}

type ContainerRefs struct {
	PortID   int
	DepotID  int
	LessorID int
}

func BuildCompany(row CompanyRow, refs CompanyRefs) CompanyPayload {
	ports := make([]BusinessPort, 0, len(refs.BusinessPortIDs))
	for _, id := range refs.BusinessPortIDs {
		ports = append(ports, BusinessPort{PortID: id})
	}
	return CompanyPayload{
		CompanyName:   row.Name,
		BusinessType:  row.BusinessType,
		Address:       row.Address,
		CountryID:     refs.CountryID,
		Phone:         row.Phone,
		Email:         row.Email,
		Website:       row.Website,
		CreditTerms:   row.CreditTerms,
		CreditLimit:   decimalString(row.CreditLimit),
		Status:        row.Status,
		Remarks:       row.Remarks,
		BusinessPorts: ports,
	}
}

func BuildPort(row PortRow, refs PortRefs) PortPayload {
	payload := PortPayload{
		PortCode:     row.Code,
		PortName:     row.Name,
		PortLongName: row.LongName,
		PortType:     string(row.Type),
		CountryID:    refs.CountryID,
		Status:       row.Status,
	}
	if row.Type == PortTypeICD {
		payload.ParentPortID = refs.ParentPortID
	}
	return payload
}

// BuildContainer assembles the inventory payload and its sub-records in the
// local time zone.
func BuildContainer(row ContainerRow, refs ContainerRefs) (ContainerPlan, []string) {
	return BuildContainerIn(row, refs, time.Local)
}

// BuildContainerIn is BuildContainer with optional dates read in loc. An
// unparseable certificate or report date drops that sub-record and is
// returned as a warning.
func BuildContainerIn(row ContainerRow, refs ContainerRefs, loc *time.Location) (ContainerPlan, []string) {
	var warnings []string
	inventory := InventoryPayload{
		ContainerNumber:          row.ContainerNumber,
		ContainerCategory:        row.Kind,
		ContainerType:            row.Type,
		ContainerSize:            row.Size,
		ContainerClass:           row.Class,
		Capacity:                 row.Capacity.String(),
		CapacityUnit:             row.CapacityUnit,
		Manufacturer:             row.Manufacturer,
		BuildYear:                row.BuildYear,
		GrossWeight:              decimalString(row.GrossWeight),
		TareWeight:               decimalString(row.TareWeight),
		OwnershipType:            string(row.Ownership),
		Status:                   "Active",
		Remarks:                  row.Remarks,
		PeriodicTankCertificates: []CertificatePayload{},
		OnHireReport:             []OnHireReportPayload{},
	}
	if row.InitialSurvey != nil {
		inventory.InitialSurveyDate = StorageString(*row.InitialSurvey)
	}

	leasing := LeasingInfoPayload{
		OwnershipType:   string(row.Ownership),
		LeasingRefNo:    row.LeasingRefNo,
		OnHireDate:      StorageString(row.OnHireDate),
		PortLocationID:  refs.PortID,
		OnHireDepotID:   refs.DepotID,
		LeaseRentPerDay: decimalString(row.LeaseRentPerDay),
		Remarks:         row.Remarks,
	}

	var plan ContainerPlan
	switch row.Ownership {
	case OwnershipOwn:
		portID, depotID := refs.PortID, refs.DepotID
		inventory.PortID = &portID
		inventory.OnHireDepotID = &depotID
		if leasing.LeasingRefNo == "" {
			leasing.LeasingRefNo = "OWN-" + row.ContainerNumber
		}
		plan.Leasing = &leasing
	case OwnershipLease:
		lessorID := refs.LessorID
		leasing.LeasorID = &lessorID
		inventory.LeasingInfo = []LeasingInfoPayload{leasing}
	}

	cert, warning, ok := buildCertificate(row, loc)
	if ok {
		inventory.PeriodicTankCertificates = append(inventory.PeriodicTankCertificates, cert)
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	if row.ReportDate != "" {
		if reportDate, ok := ParseDateIn(row.ReportDate, loc); ok {
			inventory.OnHireReport = append(inventory.OnHireReport, OnHireReportPayload{
				ReportDate:     StorageString(reportDate),
				ReportDocument: row.ReportDocument,
			})
		} else {
			warnings = append(warnings, fmt.Sprintf("%s %q is not a valid date; on-hire report skipped",
				Label(CategoryContainer, FieldReportDate), row.ReportDate))
		}
	}

	plan.Inventory = inventory
	return plan, warnings
}

// buildCertificate returns the periodic certificate of a row, if any, and a
// warning for a date it had to ignore.
func buildCertificate(row ContainerRow, loc *time.Location) (CertificatePayload, string, bool) {
	if row.InspectionDate == "" {
		return CertificatePayload{}, "", false
	}
	inspection, ok := ParseDateIn(row.InspectionDate, loc)
	if !ok {
		return CertificatePayload{}, fmt.Sprintf("%s %q is not a valid date; periodic certificate skipped",
			Label(CategoryContainer, FieldInspectionDate), row.InspectionDate), false
	}

	cert := CertificatePayload{
		InspectionDate:    StorageString(inspection),
		InspectionType:    row.InspectionType,
		CertificateNumber: row.Certificate,
	}
	warning := ""
	if row.NextDueDate != "" {
		if nextDue, ok := ParseDateIn(row.NextDueDate, loc); ok {
			cert.NextDueDate = StorageString(nextDue)
		} else {
			warning = fmt.Sprintf("%s %q is not a valid date; left empty on the certificate",
				Label(CategoryContainer, FieldNextDueDate), row.NextDueDate)
		}
	}
	return cert, warning, true
}

func decimalString(value *decimal.Decimal) string {
	if value == nil {
		return ""
	}
	return value.String()
}
