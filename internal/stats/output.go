package stats

import (
	"encoding/json"
	"fmt"
	"io"
)

func formatWindow(begin, end float64) string {
	return fmt.Sprintf("%.2f-%.2f", begin, end)
}

// WriteHumanRow prints one interval line in the teacher/original's
// transport-specific format.
func WriteHumanRow(w io.Writer, kind Kind, row IntervalRow) {
	mb := float64(row.Bytes) / (1024 * 1024)
	mbps := row.BandwidthBps / 1_000_000
	switch kind {
	case KindTCPClient:
		fmt.Fprintf(w, "[ %s s]  Transfer: %.2f MB  Bandwidth: %.2f Mbps  Cwnd: %d  Retr: %d  RTT: %d\n",
			row.Times, mb, mbps, row.CwndBytes, row.Retransmits, row.RTTMicros)
	case KindTCPServer:
		fmt.Fprintf(w, "[ %s s]  Received: %.2f MB  Bandwidth: %.2f Mbps\n", row.Times, mb, mbps)
	case KindUDPClient:
		fmt.Fprintf(w, "[ %s s]  Transfer: %.2f MB  Bandwidth: %.2f Mbps  Total Datagrams: %d\n",
			row.Times, mb, mbps, row.Packets)
	case KindUDPServer:
		fmt.Fprintf(w, "[ %s s]  Transfer: %.2f MB  Bitrate: %.2f Mbps  Jitter: %.3f ms  Lost/Total Datagrams: %d/%d (%.0f%%)\n",
			row.Times, mb, mbps, row.JitterMs, row.LostPackets, row.Packets+row.LostPackets, row.LossPercent)
	}
}

// WriteHumanSummary prints the final "=== Test Summary ===" block.
func WriteHumanSummary(w io.Writer, kind Kind, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Test Summary ===")
	fmt.Fprintf(w, "Duration: %.2f seconds\n", s.Seconds)
	fmt.Fprintf(w, "Total Data: %.2f MB\n", float64(s.Bytes)/(1024*1024))
	fmt.Fprintf(w, "Average Bandwidth: %.2f Mbps\n", s.BitsPerSecond/1_000_000)
	switch kind {
	case KindTCPClient:
		fmt.Fprintf(w, "Max_cwnd: %d bytes\n", s.MaxSndCwnd)
		fmt.Fprintf(w, "Mean_RTT: %.2f\n", s.MeanRTT)
		fmt.Fprintf(w, "Retransmissions: %d\n", s.Retransmits)
	case KindUDPServer:
		fmt.Fprintf(w, "Jitter: %.3f ms\n", s.JitterMs)
		fmt.Fprintf(w, "Lost/Total Datagrams: %d/%d (%.0f%%)\n", s.LostPackets, s.TotalDatagrams, s.LossPercent)
	case KindUDPClient:
		fmt.Fprintf(w, "Lost/Total Datagrams: %d/%d (%.0f%%)\n", s.LostPackets, s.TotalDatagrams, s.LossPercent)
	}
}

// WriteStructured marshals the full {intervals, end} document, spec §6.
func WriteStructured(w io.Writer, rows []IntervalRow, s Summary) error {
	doc := Document{Intervals: rows, End: s}
	if doc.Intervals == nil {
		doc.Intervals = []IntervalRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}
