package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/3-lines-studio/ssrserve/internal/usecase"
)

type Output struct {
	out          io.Writer
	err          io.Writer
	enableColors bool
}

func NewOutput() *Output {
	colors := isatty.IsTerminal(os.Stdout.Fd())
	return &Output{
		out:          colorable.NewColorable(os.Stdout),
		err:          colorable.NewColorable(os.Stderr),
		enableColors: colors,
	}
}

// NewWriterOutput prints everything to w without colours.
func NewWriterOutput(w io.Writer) *Output {
	return &Output{out: w, err: w}
}

func (o *Output) Green(text string) string {
	return o.color("32", text)
}

func (o *Output) Yellow(text string) string {
	return o.color("33", text)
}

func (o *Output) Red(text string) string {
	return o.color("31", text)
}

func (o *Output) Gray(text string) string {
	return o.color("90", text)
}

func (o *Output) color(code, text string) string {
	if !o.enableColors {
		return text
	}
	return "\033[" + code + "m" + text + "\033[0m"
}

func (o *Output) PrintHeader(msg string) {
	_, _ = fmt.Fprintln(o.out, msg)
	_, _ = fmt.Fprintln(o.out)
}

func (o *Output) PrintSuccess(msg string, args ...any) {
	_, _ = fmt.Fprintf(o.out, "  "+o.Green("✓ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintWarning(msg string, args ...any) {
	_, _ = fmt.Fprintf(o.out, "  "+o.Yellow("⚠ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintError(msg string, args ...any) {
	_, _ = fmt.Fprintf(o.err, "  "+o.Red("✗ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintDone(msg string) {
	_, _ = fmt.Fprintln(o.out)
	_, _ = fmt.Fprintln(o.out, msg)
}

// PrintReport writes one line per finding and a summary line.
func (o *Output) PrintReport(report usecase.CheckReport) {
	var warnings, errs int
	for _, f := range report.Findings {
		switch f.Level {
		case usecase.CheckOK:
			o.PrintSuccess("%s", f.Message)
		case usecase.CheckWarning:
			warnings++
			o.PrintWarning("%s", f.Message)
		case usecase.CheckError:
			errs++
			o.PrintError("%s", f.Message)
		}
	}

	switch {
	case errs > 0:
		o.PrintDone(o.Red(fmt.Sprintf("%d error(s), %d warning(s)", errs, warnings)))
	case warnings > 0:
		o.PrintDone(o.Yellow(fmt.Sprintf("Ready with %d warning(s)", warnings)))
	default:
		o.PrintDone(o.Green("Ready for production"))
	}
}
