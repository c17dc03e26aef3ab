// Package todo is the to-do list application state: its actions, reducer and
// the mappers that bind the list to a presentation component.
package todo

import (
	"errors"
	"fmt"
	"slices"

	"statebind/pkg/bind"
	"statebind/pkg/store"
)

// ActionAdd appends the payload text to the list.
const ActionAdd = "ADD_TODO"

// DefaultTitle is shown when the form has no title of its own.
const DefaultTitle = "Untitled"

// ErrBadPayload is returned when an ActionAdd payload is not a string.
var ErrBadPayload = errors.New("todo: bad payload")

// State is the ordered list of task texts. Reducers never modify a State in
// place.
type State []string

// Add builds an ActionAdd action.
func Add(text string) store.Action {
	return store.Action{Type: ActionAdd, Payload: text}
}

// Reduce is the application reducer. Unknown actions return state unchanged.
func Reduce(state State, a store.Action) (State, error) {
	switch a.Type {
	case ActionAdd:
		text, ok := a.Payload.(string)
		if !ok {
			return state, fmt.Errorf("%w: %s wants a string, got %T", ErrBadPayload, ActionAdd, a.Payload)
		}
		next := make(State, len(state), len(state)+1)
		copy(next, state)
		return append(next, text), nil
	default:
		return state, nil
	}
}

// NewStore creates a store over Reduce.
func NewStore(initial State, opts ...store.Option[State]) (*store.Store[State], error) {
	if initial == nil {
		initial = State{}
	}
	return store.New(Reduce, initial, opts...)
}

// Own is what the parent passes to the form.
type Own struct {
	Title string
}

// StateProps is the slice of state the form displays.
type StateProps struct {
	Todos State
}

// DispatchProps holds the form's callbacks.
type DispatchProps struct {
	AddTodo func(text string) error
}

// Props is the full input of a bound form.
type Props = bind.Props[Own, StateProps, DispatchProps]

// Title returns p.Own.Title or DefaultTitle.
func Title(p Props) string {
	if p.Own.Title == "" {
		return DefaultTitle
	}
	return p.Own.Title
}

// MapState exposes the whole list to the form.
func MapState(s State, _ Own) StateProps {
	return StateProps{Todos: s}
}

// MapDispatch gives the form an AddTodo callback that dispatches Add.
func MapDispatch(dispatch store.DispatchFunc, _ Own) DispatchProps {
	return DispatchProps{
		AddTodo: func(text string) error {
			_, err := dispatch(Add(text))
			return err
		},
	}
}

// Bound is a form bound to a to-do store.
type Bound = bind.Bound[State, Own, StateProps, DispatchProps]

// Connect wraps c so it follows the to-do store.
func Connect(c bind.Component[Own, StateProps, DispatchProps], opts ...bind.Option[StateProps]) *Bound {
	return bind.Connect[State, Own, StateProps, DispatchProps](MapState, MapDispatch, opts...)(c)
}

// SameTodos reports whether two StateProps show the same list. It is meant
// for bind.WithStateEqual.
func SameTodos(prev, next StateProps) bool {
	return slices.Equal(prev.Todos, next.Todos)
}
