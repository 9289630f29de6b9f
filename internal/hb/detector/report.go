package detector

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kolkov/kernsync/internal/debug"
	"github.com/kolkov/kernsync/internal/hb/epoch"
	"github.com/kolkov/kernsync/internal/threads"
)

// AccessType is the kind of access to a shared variable.
type AccessType int

const (
	// AccessRead indicates a read.
	AccessRead AccessType = iota
	// AccessWrite indicates a write.
	AccessWrite
)

// String returns "Read" or "Write".
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	default:
		return "Unknown"
	}
}

// Race types, named previous-current.
const (
	// RaceTypeWriteWrite is a write concurrent with an earlier write.
	RaceTypeWriteWrite = "write-write"
	// RaceTypeReadWrite is a write concurrent with an earlier read.
	RaceTypeReadWrite = "read-write"
	// RaceTypeWriteRead is a read concurrent with an earlier write.
	RaceTypeWriteRead = "write-read"
)

// AccessInfo describes one of the two accesses in a race.
type AccessInfo struct {
	Type   AccessType
	Addr   any
	Thread threads.ID
	// ThreadName is the thread's debug name when known.
	ThreadName string
	Epoch      epoch.Epoch
}

// RaceReport describes two conflicting, unordered accesses.
type RaceReport struct {
	// Type is one of the RaceType constants.
	Type string

	// Current is the access that exposed the race.
	Current AccessInfo

	// Previous is the earlier conflicting access.
	Previous AccessInfo

	// DeduplicationKey identifies the race independently of which of the
	// two threads noticed it: "{type}:{addr}:{tid1}:{tid2}" with tid1 <= tid2.
	DeduplicationKey string
}

func accessTypes(raceType string) (prev, cur AccessType) {
	switch raceType {
	case RaceTypeReadWrite:
		return AccessRead, AccessWrite
	case RaceTypeWriteRead:
		return AccessWrite, AccessRead
	default:
		return AccessWrite, AccessWrite
	}
}

func generateDeduplicationKey(raceType string, addr any, tid1, tid2 threads.ID) string {
	return fmt.Sprintf("%s:%v:%d:%d", raceType, addr, min(tid1, tid2), max(tid1, tid2))
}

// Format writes the report in the style of the Go race detector:
//
//	==================
//	WARNING: DATA RACE
//	Read at buffer[0] by consumer:
//	  [epoch: 3@3]
//
//	Previous write at buffer[0] by producer:
//	  [epoch: 2@2]
//	==================
//
//nolint:errcheck // report output is best effort
func (r *RaceReport) Format(w io.Writer) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "WARNING: DATA RACE\n")
	fmt.Fprintf(w, "%s at %v by %s:\n", r.Current.Type, r.Current.Addr, r.Current.ThreadName)
	fmt.Fprintf(w, "  [epoch: %s]\n", r.Current.Epoch)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Previous %s at %v by %s:\n",
		strings.ToLower(r.Previous.Type.String()), r.Previous.Addr, r.Previous.ThreadName)
	fmt.Fprintf(w, "  [epoch: %s]\n", r.Previous.Epoch)
	fmt.Fprintf(w, "==================\n")
}

// String returns the formatted report.
func (r *RaceReport) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}

// report records a race unless the same pair of threads already raced on
// addr. Caller must hold d.mu.
func (d *Detector) report(raceType string, addr any, prev, cur epoch.Epoch) {
	key := generateDeduplicationKey(raceType, addr, prev.TID(), cur.TID())
	if d.reported[key] {
		return
	}
	d.reported[key] = true

	prevType, curType := accessTypes(raceType)
	r := &RaceReport{
		Type: raceType,
		Current: AccessInfo{
			Type:       curType,
			Addr:       addr,
			Thread:     cur.TID(),
			ThreadName: d.threadName(cur.TID()),
			Epoch:      cur,
		},
		Previous: AccessInfo{
			Type:       prevType,
			Addr:       addr,
			Thread:     prev.TID(),
			ThreadName: d.threadName(prev.TID()),
			Epoch:      prev,
		},
		DeduplicationKey: key,
	}
	d.races = append(d.races, r)
	d.log.Printf(debug.Race, "hb: %s race on %v between %d and %d", raceType, addr, prev.TID(), cur.TID())

	if d.out != nil {
		r.Format(d.out)
	}
}

func threadIDString(tid threads.ID) string {
	return strconv.Itoa(int(tid))
}
