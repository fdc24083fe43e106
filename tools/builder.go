package tools

// Builder collects the tools created by the provider packages,
// the first error is retained.
//
//	var b tools.Builder
//	b.Add(tools.NewBase(...))
//	return b.Tools()
type Builder struct {
	list []ITool
	err  error
}

// Add appends the tool, if err is not nil it is retained and the tool is skipped
func (b *Builder) Add(t ITool, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.list = append(b.list, t)
	return b
}

// Tools returns the collected tools or the first error
func (b *Builder) Tools() ([]ITool, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.list, nil
}
