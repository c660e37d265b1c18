package starter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"moff.io/moff-connector/internal/config"
)

type element struct {
	name    string
	events  *[]string
	applied *config.Configuration
}

func (e *element) Start(context.Context) {
	*e.events = append(*e.events, "start "+e.name)
}

func (e *element) Stop() {
	*e.events = append(*e.events, "stop "+e.name)
}

type configurableElement struct {
	element
}

func (e *configurableElement) Apply(c *config.Configuration) {
	e.applied = c
	*e.events = append(*e.events, "apply "+e.name)
}

func TestStartAndStop(t *testing.T) {
	prev := config.Global
	config.Global = &config.Configuration{LogLevel: "debug"}
	defer func() { config.Global = prev }()

	var events []string
	a := &element{name: "a", events: &events}
	b := &configurableElement{element{name: "b", events: &events}}

	Start(context.Background(), a, b)
	Stop(a, b)

	assert.Equal(t, []string{"start a", "apply b", "start b", "stop b", "stop a"}, events)
	assert.Equal(t, config.Global, b.applied)
}
