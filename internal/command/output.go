package command

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goforj/pagecache"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
)

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderStatus(out io.Writer, status map[string]pagecache.ServerStatus) {
	ids := make([]string, 0, len(status))
	for id := range status {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := newTable(out, table.Row{"Server", "Status"})
	up := 0
	for _, id := range ids {
		if status[id] == pagecache.StatusUp {
			up++
		}
		t.AppendRow(table.Row{id, status[id].String()})
	}
	t.AppendFooter(table.Row{"up", fmt.Sprintf("%d/%d", up, len(ids))})
	t.Render()
}

func renderServers(out io.Writer, servers []pagecache.Server) {
	t := newTable(out, table.Row{"ID", "Host", "Port"})
	for _, s := range servers {
		t.AppendRow(table.Row{s.ID, s.Host, s.Port})
	}
	t.Render()
}

func renderMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	t := newTable(out, table.Row{"Metric", "Labels", "Value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value string
			switch {
			case m.GetCounter() != nil:
				value = humanize.Comma(int64(m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("n=%d sum=%.6fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			t.AppendRow(table.Row{mf.GetName(), strings.Join(labels, ","), value})
		}
	}
	t.Render()
	return nil
}

func sizeOf(b []byte) string {
	return humanize.Bytes(uint64(len(b)))
}
