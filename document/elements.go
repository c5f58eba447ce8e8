package document

import (
	"github.com/kokukuma/mdoc-wallet/mdoc"
)

// Elements maps a document type to its namespaces and the element
// identifiers requested (or selected) under each.
type Elements map[mdoc.DocType]map[mdoc.NameSpace][]mdoc.ElementIdentifier

func (d Elements) Empty() bool {
	for _, namespaces := range d {
		for _, elems := range namespaces {
			if len(elems) > 0 {
				return false
			}
		}
	}
	return true
}

func (d Elements) DocTypes() []mdoc.DocType {
	docTypes := []mdoc.DocType{}
	for docType := range d {
		docTypes = append(docTypes, docType)
	}
	return docTypes
}

// Contains reports whether every element of sub is also requested in d.
func (d Elements) Contains(sub Elements) bool {
	for docType, namespaces := range sub {
		held, ok := d[docType]
		if !ok {
			return false
		}
		for ns, elems := range namespaces {
			heldElems, ok := held[ns]
			if !ok {
				return false
			}
			for _, elem := range elems {
				if !containsElement(heldElems, elem) {
					return false
				}
			}
		}
	}
	return true
}

func containsElement(elems []mdoc.ElementIdentifier, elem mdoc.ElementIdentifier) bool {
	for _, e := range elems {
		if e == elem {
			return true
		}
	}
	return false
}
