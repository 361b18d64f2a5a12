package pipeline

import (
	"context"
	"fmt"
	"slices"

	"webmpipe/internal/encoder"
	"webmpipe/internal/pool"
)

// Submitter dispatches jobs. *pool.Pool satisfies it.
type Submitter interface {
	Spawn(job encoder.Job, onLog func(string)) *pool.Future
	Destroy()
}

// Observer receives scheduling events. StageStarted and StageFinished are
// called on the control goroutine; StageLog is called from worker goroutines
// and may arrive after Execute returned.
type Observer interface {
	StageStarted(st *Stage)
	StageLog(st *Stage, line string)
	StageFinished(st *Stage, outputs []encoder.File)
}

// Graph is a set of stages with dependency edges, kept in insertion order.
type Graph struct {
	stages []*Stage
	index  map[string]*Stage
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]*Stage)}
}

// Add appends a stage. Dependencies must already be present, which keeps
// the graph acyclic.
func (g *Graph) Add(st *Stage) error {
	if _, ok := g.index[st.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, st.ID)
	}
	for _, dep := range st.Deps {
		if _, ok := g.index[dep]; !ok {
			return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, st.ID, dep)
		}
	}
	g.stages = append(g.stages, st)
	g.index[st.ID] = st
	return nil
}

// Stages returns the stages in insertion order.
func (g *Graph) Stages() []*Stage {
	return slices.Clone(g.stages)
}

// Stage looks up a stage by id.
func (g *Graph) Stage(id string) (*Stage, bool) {
	st, ok := g.index[id]
	return st, ok
}

type completion struct {
	stage *Stage
	files []encoder.File
	err   error
}

// Execute runs every stage through sub and returns the outputs of each stage
// keyed by id. Stages whose dependencies are satisfied are submitted
// immediately. On the first failure sub is destroyed and a *StageError is
// returned; when ctx ends sub is destroyed and ctx's error is returned. Static
// stage inputs are released once dispatched.
func (g *Graph) Execute(ctx context.Context, sub Submitter, obs Observer) (map[string][]encoder.File, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	remaining := make(map[string]int, len(g.stages))
	dependents := make(map[string][]*Stage, len(g.stages))
	for _, st := range g.stages {
		remaining[st.ID] = len(st.Deps)
		for _, dep := range st.Deps {
			dependents[dep] = append(dependents[dep], st)
		}
	}

	// Buffered so late completions never block after Execute returns.
	events := make(chan completion, len(g.stages))
	results := make(map[string][]encoder.File, len(g.stages))

	submit := func(st *Stage) {
		inputs := slices.Clone(st.Inputs)
		for _, dep := range st.Deps {
			inputs = append(inputs, results[dep]...)
		}
		st.Inputs = nil

		obs.StageStarted(st)
		future := sub.Spawn(encoder.Job{Args: slices.Clone(st.Args), Inputs: inputs}, func(line string) {
			obs.StageLog(st, line)
		})
		go func() {
			files, err := future.Wait(context.Background())
			events <- completion{stage: st, files: files, err: err}
		}()
	}

	if err := ctx.Err(); err != nil {
		sub.Destroy()
		return nil, err
	}
	for _, st := range g.stages {
		if remaining[st.ID] == 0 {
			submit(st)
		}
	}

	for finished := 0; finished < len(g.stages); {
		select {
		case <-ctx.Done():
			sub.Destroy()
			return nil, ctx.Err()
		case c := <-events:
			if c.err != nil {
				sub.Destroy()
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, &StageError{ID: c.stage.ID, Key: c.stage.Key, Err: c.err}
			}
			finished++
			results[c.stage.ID] = c.files
			obs.StageFinished(c.stage, c.files)
			for _, next := range dependents[c.stage.ID] {
				remaining[next.ID]--
				if remaining[next.ID] == 0 {
					submit(next)
				}
			}
		}
	}
	return results, nil
}

type nopObserver struct{}

func (nopObserver) StageStarted(*Stage)                  {}
func (nopObserver) StageLog(*Stage, string)              {}
func (nopObserver) StageFinished(*Stage, []encoder.File) {}
