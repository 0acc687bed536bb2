package locator

// Kind is the closed set of resource kinds the walker distinguishes
type Kind int

const (
	// KindOther is any readable record that has no edge rules of its own
	KindOther Kind = iota
	KindJob
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindCollection:
		return "collection"
	default:
		return "other"
	}
}

// Object id type codes
const (
	TypeCollection       = "4zz18"
	TypeJob              = "8i9sb"
	TypeLink             = "o0j2j"
	TypeUser             = "tpzed"
	TypeGroup            = "j7d0g"
	TypeContainerRequest = "xvhdp"
	TypeContainer        = "dz642"
	TypeWorkflow         = "7fd4e"
	TypeLog              = "57u5n"
	TypePipelineInstance = "d1hrv"
	TypePipelineTemplate = "p5p6p"
)

// resourceNames maps known type codes to the resource name used by stores
var resourceNames = map[string]string{
	TypeCollection:       "collection",
	TypeJob:              "job",
	TypeLink:             "link",
	TypeUser:             "user",
	TypeGroup:            "group",
	TypeContainerRequest: "container_request",
	TypeContainer:        "container",
	TypeWorkflow:         "workflow",
	TypeLog:              "log",
	TypePipelineInstance: "pipeline_instance",
	TypePipelineTemplate: "pipeline_template",
}

// Classify derives the resource kind from the id's type code. It never
// consults a store.
func Classify(id string) Kind {
	switch TypeCode(id) {
	case TypeJob:
		return KindJob
	case TypeCollection:
		return KindCollection
	default:
		return KindOther
	}
}

// ResourceName returns the store resource name for an object id, or "" when
// the type code is not registered.
func ResourceName(id string) string {
	return resourceNames[TypeCode(id)]
}

// IsCollectionType reports whether a type code names a collection
func IsCollectionType(typeCode string) bool {
	return typeCode == TypeCollection
}
