package construct

type Resource struct {
	ID         ResourceId
	Properties Properties
	// Attributes are template-level settings of the resource (DeletionPolicy, UpdateReplacePolicy, ...)
	// which the provisioner interprets itself rather than passing on to the provider.
	Attributes Properties
}

func CreateResource(id ResourceId) *Resource {
	return &Resource{
		ID:         id,
		Properties: make(Properties),
	}
}

// SetAttribute sets a template-level attribute of the resource.
func (r *Resource) SetAttribute(name string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(Properties)
	}
	r.Attributes[name] = value
}

// Ref returns a reference to the resource itself, which providers resolve to the resource's primary identifier.
func (r *Resource) Ref() PropertyRef {
	return PropertyRef{Resource: r.ID}
}

// Attr returns a reference to one of the resource's provider-computed attributes.
func (r *Resource) Attr(name string) PropertyRef {
	return PropertyRef{Resource: r.ID, Property: name}
}
