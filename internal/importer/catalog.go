package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrConflict marks a create rejected because the record already exists.
var ErrConflict = errors.New("record already exists")

// Source is the read side of the backend.
type Source interface {
	ListCountries(ctx context.Context) ([]Entry, error)
	ListPorts(ctx context.Context) ([]Entry, error)
	ListAddressBook(ctx context.Context) ([]Entry, error)
	ListInventory(ctx context.Context) ([]ExistingRecord, error)
}

// Writer is the write side of the backend. Each call returns the id of the
// created record; "already exists" failures wrap ErrConflict.
type Writer interface {
	CreateCompany(ctx context.Context, payload CompanyPayload) (int, error)
	CreatePort(ctx context.Context, payload PortPayload) (int, error)
	CreateInventory(ctx context.Context, payload InventoryPayload) (int, error)
	CreateLeasingInfo(ctx context.Context, payload LeasingInfoPayload) (int, error)
}

// Catalog is the reference snapshot of one run. It is read once and never
// updated while rows are processed.
type Catalog struct {
	Countries   []Entry
	Ports       []Entry
	AddressBook []Entry
	Inventory   []ExistingRecord
}

// LoadCatalog fetches the reference lists concurrently. Inventory is only
// needed to guard container numbers.
func LoadCatalog(ctx context.Context, source Source, category Category) (Catalog, error) {
	var catalog Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		countries, err := source.ListCountries(gctx)
		if err != nil {
			return fmt.Errorf("load countries: %w", err)
		}
		catalog.Countries = countries
		return nil
	})
	g.Go(func() error {
		ports, err := source.ListPorts(gctx)
		if err != nil {
			return fmt.Errorf("load ports: %w", err)
		}
		catalog.Ports = ports
		return nil
	})
	g.Go(func() error {
		entries, err := source.ListAddressBook(gctx)
		if err != nil {
			return fmt.Errorf("load address book: %w", err)
		}
		catalog.AddressBook = entries
		return nil
	})
	if category == CategoryContainer {
		g.Go(func() error {
			inventory, err := source.ListInventory(gctx)
			if err != nil {
				return fmt.Errorf("load inventory: %w", err)
			}
			catalog.Inventory = inventory
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

// ExistingKeys returns the natural keys already taken for category.
func (c Catalog) ExistingKeys(category Category) []ExistingRecord {
	switch category {
	case CategoryCompany:
		return entryKeys(c.AddressBook)
	case CategoryPort:
		return entryKeys(c.Ports)
	case CategoryContainer:
		return c.Inventory
	default:
		return nil
	}
}

func (c Catalog) ResolveCompany(row CompanyRow) (CompanyRefs, error) {
	var (
		refs     CompanyRefs
		problems []string
	)
	country := Resolve(c.Countries, row.Country, Preference{})
	if country.Found {
		refs.CountryID = country.ID
	} else {
		problems = append(problems, country.Describe("Country"))
	}
	for _, name := range row.BusinessPorts {
		port := Resolve(c.Ports, name, Preference{})
		if !port.Found {
			problems = append(problems, port.Describe("Business Port"))
			continue
		}
		refs.BusinessPortIDs = append(refs.BusinessPortIDs, port.ID)
	}
	return refs, joinProblems(problems)
}

func (c Catalog) ResolvePort(row PortRow) (PortRefs, error) {
	var (
		refs     PortRefs
		problems []string
	)
	country := Resolve(c.Countries, row.Country, Preference{})
	if country.Found {
		refs.CountryID = country.ID
	} else {
		problems = append(problems, country.Describe("Country"))
	}
	if row.Type == PortTypeICD {
		parent := Resolve(c.Ports, row.ParentPort, Preference{Role: string(PortTypeMain)})
		if parent.Found {
			id := parent.ID
			refs.ParentPortID = &id
		} else {
			problems = append(problems, parent.Describe("Parent Port"))
		}
	}
	return refs, joinProblems(problems)
}

// ResolveContainer resolves the on-hire port first so the depot lookup can
// prefer depots serving that port.
func (c Catalog) ResolveContainer(row ContainerRow) (ContainerRefs, error) {
	var (
		refs     ContainerRefs
		problems []string
	)
	port := Resolve(c.Ports, row.OnHireLocation, Preference{})
	if port.Found {
		refs.PortID = port.ID
	} else {
		problems = append(problems, port.Describe("On Hire Location"))
	}
	depot := Resolve(c.AddressBook, row.OnHireDepot, Preference{Role: "depot", PortID: refs.PortID})
	if depot.Found {
		refs.DepotID = depot.ID
	} else {
		problems = append(problems, depot.Describe("On Hire Depot"))
	}
	if row.Ownership == OwnershipLease {
		lessor := Resolve(c.AddressBook, row.Lessor, Preference{Role: "lessor"})
		if lessor.Found {
			refs.LessorID = lessor.ID
		} else {
			problems = append(problems, lessor.Describe("Lessor"))
		}
	}
	return refs, joinProblems(problems)
}

func entryKeys(entries []Entry) []ExistingRecord {
	records := make([]ExistingRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, ExistingRecord{ID: entry.ID, Key: entry.Name})
	}
	return records
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}
