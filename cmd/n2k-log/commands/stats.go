package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	DropsByReason     map[string]int
	PGNs              map[uint32]int
	Sessions          map[string]*SessionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	LinesIn    int
	LinesOut   int
	RemoteAddr string
	Format     string
	CloseState string
}

// Collect reads matching events from path into Stats.
func Collect(path string, filter log.Filter) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		DropsByReason:     make(map[string]int),
		PGNs:              make(map[uint32]int),
		Sessions:          make(map[string]*SessionStats),
	}

	err := eachEvent(path, filter, func(event log.Event) error {
		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.Message != nil {
			if event.Category == log.CategoryDrop {
				stats.DropsByReason[event.Message.Reason]++
			} else {
				stats.PGNs[event.Message.PGN]++
			}
		}
		if event.Error != nil {
			stats.Errors++
		}

		if event.SessionID == "" {
			return nil
		}
		s, ok := stats.Sessions[event.SessionID]
		if !ok {
			s = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			stats.Sessions[event.SessionID] = s
		}
		s.Events++
		if event.Timestamp.After(s.LastSeen) {
			s.LastSeen = event.Timestamp
		}
		if s.RemoteAddr == "" {
			s.RemoteAddr = event.RemoteAddr
		}
		if s.Format == "" {
			s.Format = event.Format
		}
		if event.Line != nil {
			if event.Direction == log.DirectionIn {
				s.LinesIn++
			} else {
				s.LinesOut++
			}
		}
		if event.StateChange != nil && event.StateChange.NewState == "CLOSED" {
			s.CloseState = event.StateChange.Reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := Collect(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== N2K Relay Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerCodec, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryDrop, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.PGNs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "PGNs:")
		pgns := make([]uint32, 0, len(stats.PGNs))
		for pgn := range stats.PGNs {
			pgns = append(pgns, pgn)
		}
		sort.Slice(pgns, func(i, j int) bool { return pgns[i] < pgns[j] })
		for _, pgn := range pgns {
			fmt.Fprintf(w, "  %-12d %d\n", pgn, stats.PGNs[pgn])
		}
	}

	if len(stats.DropsByReason) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Drops by Reason:")
		reasons := make([]string, 0, len(stats.DropsByReason))
		for r := range stats.DropsByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-12s %d\n", r+":", stats.DropsByReason[r])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
			fmt.Fprintf(w, "           Peer: %s  Format: %s\n", orDash(s.stats.RemoteAddr), orDash(s.stats.Format))
			fmt.Fprintf(w, "           Lines: %d in, %d out\n", s.stats.LinesIn, s.stats.LinesOut)
			if s.stats.CloseState != "" {
				fmt.Fprintf(w, "           Closed: %s\n", s.stats.CloseState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
