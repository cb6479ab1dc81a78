package importer

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryCompany   Category = "company"
	CategoryPort      Category = "port"
	CategoryContainer Category = "container"
)

var ErrUnknownCategory = errors.New("unknown import category")

var categoryAliases = map[string]Category{
	"company":     CategoryCompany,
	"companies":   CategoryCompany,
	"addressbook": CategoryCompany,
	"port":        CategoryPort,
	"ports":       CategoryPort,
	"container":   CategoryContainer,
	"containers":  CategoryContainer,
	"inventory":   CategoryContainer,
	"inventories": CategoryContainer,
}

func ParseCategory(value string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	category, ok := categoryAliases[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
	return category, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryCompany, CategoryPort, CategoryContainer:
		return true
	default:
		return false
	}
}

// Plural is the collection name used in routes, templates and messages.
func (c Category) Plural() string {
	switch c {
	case CategoryCompany:
		return "companies"
	case CategoryPort:
		return "ports"
	case CategoryContainer:
		return "containers"
	default:
		return string(c)
	}
}

// EntityLabel names one record of the category in row-scoped messages.
func (c Category) EntityLabel() string {
	switch c {
	case CategoryCompany:
		return "Company"
	case CategoryPort:
		return "Port"
	case CategoryContainer:
		return "Container"
	default:
		return string(c)
	}
}
