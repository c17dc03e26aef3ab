package ui

import (
	"fmt"
	"image/color"
	"log"
	"strings"
	"sync"

	"gioui.org/layout"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"statebind/pkg/todo"
)

// Form is the to-do form. It implements bind.Component: Render stores the
// latest props and asks the window for a new frame; Layout draws them.
type Form struct {
	theme      *material.Theme
	invalidate func()

	mu    sync.Mutex
	props todo.Props
	ready bool

	editor widget.Editor
	addBtn widget.Clickable
	list   widget.List
}

// NewForm creates a Form. invalidate is called after every Render and must
// be safe to call from any goroutine.
func NewForm(th *material.Theme, invalidate func()) *Form {
	f := &Form{theme: th, invalidate: invalidate}
	f.editor.SingleLine = true
	f.editor.Submit = true
	f.list.Axis = layout.Vertical
	return f
}

// Render implements bind.Component.
func (f *Form) Render(p todo.Props) {
	f.mu.Lock()
	f.props = p
	f.ready = true
	f.mu.Unlock()
	if f.invalidate != nil {
		f.invalidate()
	}
}

func (f *Form) snapshot() (todo.Props, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props, f.ready
}

// Layout handles input and draws the form with the last rendered props.
func (f *Form) Layout(gtx layout.Context) layout.Dimensions {
	p, ready := f.snapshot()

	submitted := f.addBtn.Clicked(gtx)
	for {
		ev, ok := f.editor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := ev.(widget.SubmitEvent); ok {
			submitted = true
		}
	}
	if submitted && ready {
		f.add(p)
		// Dispatch re-rendered synchronously; draw the new list this frame.
		p, _ = f.snapshot()
	}

	th := f.theme
	return layout.Inset{Top: unit.Dp(16), Right: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(16)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return material.H5(th, todo.Title(p)).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						return material.Editor(th, &f.editor, "Task name").Layout(gtx)
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return material.Button(th, &f.addBtn, "Add").Layout(gtx)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				todos := p.State.Todos
				return material.List(th, &f.list).Layout(gtx, len(todos), func(gtx layout.Context, i int) layout.Dimensions {
					return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						return layout.Flex{}.Layout(gtx,
							layout.Rigid(func(gtx layout.Context) layout.Dimensions {
								label := material.Body2(th, fmt.Sprintf("%d.", i+1))
								label.Color = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
								return label.Layout(gtx)
							}),
							layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
							layout.Rigid(func(gtx layout.Context) layout.Dimensions {
								return material.Body1(th, todos[i]).Layout(gtx)
							}),
						)
					})
				})
			}),
		)
	})
}

func (f *Form) add(p todo.Props) {
	text := strings.TrimSpace(f.editor.Text())
	if text == "" {
		return
	}
	f.editor.SetText("")
	if err := p.Dispatch.AddTodo(text); err != nil {
		log.Printf("ui: add todo: %v", err)
	}
}
