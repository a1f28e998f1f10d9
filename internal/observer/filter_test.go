package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeFilter_NoTypesMeansNoFilter(t *testing.T) {
	assert.Nil(t, NewEventTypeFilter())
}

func TestEventTypeFilter_AllowsOnlyListedTypes(t *testing.T) {
	f := NewEventTypeFilter(EventCaseStarted, EventCaseCompleted)
	assert.True(t, f.ShouldNotify(Event{Type: EventCaseStarted}))
	assert.False(t, f.ShouldNotify(Event{Type: EventTaskFired}))
}

func TestCaseIDFilter_ScopesToSingleCase(t *testing.T) {
	f := NewCaseIDFilter("c1")
	assert.True(t, f.ShouldNotify(Event{CaseID: "c1"}))
	assert.False(t, f.ShouldNotify(Event{CaseID: "c2"}))
}

func TestCompoundEventFilter_DropsNilsAndUnwrapsSingle(t *testing.T) {
	assert.Nil(t, NewCompoundEventFilter(nil, nil))

	single := NewCompoundEventFilter(nil, NewCaseIDFilter("c1"))
	assert.IsType(t, &CaseIDFilter{}, single)
}

func TestCompoundEventFilter_RequiresAllSubFiltersToPass(t *testing.T) {
	f := NewCompoundEventFilter(NewCaseIDFilter("c1"), NewEventTypeFilter(EventCaseStarted))

	assert.True(t, f.ShouldNotify(Event{CaseID: "c1", Type: EventCaseStarted}))
	assert.False(t, f.ShouldNotify(Event{CaseID: "c1", Type: EventTaskFired}))
	assert.False(t, f.ShouldNotify(Event{CaseID: "c2", Type: EventCaseStarted}))
}
