package gate

import (
	"fmt"
	"io"
)

// ConsolePresenter renders feedback as terminal output. Stations without a
// display panel run with this.
type ConsolePresenter struct {
	W io.Writer
}

func (p *ConsolePresenter) Play(Tone) {
	// BEL is as close to a beep as a terminal gets.
	fmt.Fprint(p.W, "\a")
}

func (p *ConsolePresenter) Flash(c FlashColor) {
	fmt.Fprintf(p.W, "[%s]\n", c)
}

func (p *ConsolePresenter) Show(s Signal) {
	fmt.Fprintf(p.W, "%s  %s  %s\n", s.At.Format("15:04:05"), s.EventTitle, s.Message)
}

func (p *ConsolePresenter) Clear() {
	fmt.Fprintln(p.W)
}
