package pipeline

import (
	"render-engine/internal/renderr"
)

type insertion struct {
	name     string
	position int
	after    string
}

// Builder assembles a stage list from the defaults plus custom stages
// looked up in a Registry. Any unknown name fails Build.
type Builder struct {
	svc      Services
	registry *Registry
	skips    []string
	inserts  []insertion
}

// NewBuilder starts from the default stages.
func NewBuilder(svc Services, registry *Registry) *Builder {
	return &Builder{svc: svc, registry: registry}
}

// Skip removes a default stage.
func (b *Builder) Skip(name string) *Builder {
	b.skips = append(b.skips, name)
	return b
}

// Insert places a registered custom stage at position (0 = first).
func (b *Builder) Insert(name string, position int) *Builder {
	b.inserts = append(b.inserts, insertion{name: name, position: position})
	return b
}

// InsertAfter places a registered custom stage right after the stage named
// after.
func (b *Builder) InsertAfter(name, after string) *Builder {
	b.inserts = append(b.inserts, insertion{name: name, position: -1, after: after})
	return b
}

// Build applies skips and then insertions in call order.
func (b *Builder) Build() ([]Stage, error) {
	const op = "pipeline.Builder.Build"
	stages := DefaultStages(b.svc)

	for _, name := range b.skips {
		i := indexOf(stages, name)
		if i < 0 {
			return nil, renderr.Validation(op, "cannot skip unknown stage %q", name)
		}
		stages = append(stages[:i], stages[i+1:]...)
	}

	for _, ins := range b.inserts {
		factory, ok := b.registry.Lookup(ins.name)
		if !ok {
			return nil, renderr.Validation(op, "unknown stage %q", ins.name)
		}
		if indexOf(stages, ins.name) >= 0 {
			return nil, renderr.Validation(op, "stage %q inserted twice", ins.name)
		}

		pos := ins.position
		if ins.after != "" {
			i := indexOf(stages, ins.after)
			if i < 0 {
				return nil, renderr.Validation(op, "cannot insert %q after unknown stage %q", ins.name, ins.after)
			}
			pos = i + 1
		}
		if pos < 0 || pos > len(stages) {
			return nil, renderr.Validation(op, "position %d for stage %q out of range [0,%d]", pos, ins.name, len(stages))
		}

		stages = append(stages, nil)
		copy(stages[pos+1:], stages[pos:])
		stages[pos] = factory(b.svc)
	}
	return stages, nil
}

func indexOf(stages []Stage, name string) int {
	for i, s := range stages {
		if s.Name() == name {
			return i
		}
	}
	return -1
}
