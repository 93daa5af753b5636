package walkthrough

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
)

const separator = "———————————————"

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// printer 订阅协程与主流程共用输出, 需要加锁
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) dump(title string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, title)
	dumper.Fdump(p.out, v)
}

// table 第一行为表头
func (p *printer) table(title string, rows [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, title)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func (p *printer) end() {
	p.printf("%s\n\n", separator)
}
