package importer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is a validated, category-tagged input row. Only rows that passed
// validation exist in this form.
type Row interface {
	Category() Category
	Number() int
	Key() string
}

type Ownership string

const (
	OwnershipOwn   Ownership = "Own"
	OwnershipLease Ownership = "Lease"
)

type PortType string

const (
	PortTypeMain PortType = "Main"
	PortTypeICD  PortType = "ICD"
)

type CompanyRow struct {
	RowNumber     int
	Name          string
	BusinessType  string
	Address       string
	Country       string
	Phone         string
	Email         string
	Website       string
	CreditTerms   string
	CreditLimit   *decimal.Decimal
	BusinessPorts []string
	Status        string
	Remarks       string
}

func (r CompanyRow) Category() Category { return CategoryCompany }
func (r CompanyRow) Number() int        { return r.RowNumber }
func (r CompanyRow) Key() string        { return r.Name }

type PortRow struct {
	RowNumber  int
	Code       string
	Name       string
	LongName   string
	Type       PortType
	ParentPort string
	Country    string
	Status     string
}

func (r PortRow) Category() Category { return CategoryPort }
func (r PortRow) Number() int        { return r.RowNumber }
func (r PortRow) Key() string        { return r.Name }

type ContainerRow struct {
	RowNumber       int
	ContainerNumber string
	Kind            string // Tank, Dry or Refrigerated
	Type            string
	Size            string
	Class           string
	Capacity        decimal.Decimal
	CapacityUnit    string
	Manufacturer    string
	BuildYear       int
	GrossWeight     *decimal.Decimal
	TareWeight      *decimal.Decimal
	InitialSurvey   *time.Time
	Ownership       Ownership
	Lessor          string
	LeasingRefNo    string
	LeaseRentPerDay *decimal.Decimal
	OnHireDate      time.Time
	OnHireLocation  string
	OnHireDepot     string
	InspectionDate  string
	InspectionType  string
	NextDueDate     string
	Certificate     string
	ReportDate      string
	ReportDocument  string
	Remarks         string
}

func (r ContainerRow) Category() Category { return CategoryContainer }
func (r ContainerRow) Number() int        { return r.RowNumber }
func (r ContainerRow) Key() string        { return r.ContainerNumber }
