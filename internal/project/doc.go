// Package project defines the editing document handed to a render: tracks,
// clips, the global effect/filter/transition/template pools, subtitles and
// export settings.
//
// Documents are YAML (JSON is accepted as a YAML subset):
//
//	p, err := project.Load("edit.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := p.Validate().Err("render"); err != nil {
//	    return err
//	}
//
// Clips reference pool entries by ID and never embed them. Parameters are a
// typed bag (Params) whose string forms are what the filter-graph compiler
// substitutes into command templates.
//
// The engine treats a loaded Project as read-only.
package project
