package membrane

// Descriptor describes a property to install across the boundary. Value may
// be a plain Go value (converted directly into the target realm) or a
// goja.Value from the host realm (translated through the membrane).
type Descriptor struct {
	Value        interface{}
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// DescriptorMap maps property names to descriptors. Endowments are supplied
// in this form.
type DescriptorMap map[string]Descriptor

// DataDescriptor returns a writable, enumerable, configurable descriptor.
func DataDescriptor(value interface{}) Descriptor {
	return Descriptor{
		Value:        value,
		Writable:     true,
		Enumerable:   true,
		Configurable: true,
	}
}
