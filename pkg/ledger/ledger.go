package ledger

import "fmt"

// MaxFilesPerCollection is the number of document folders held by one
// document collection
const MaxFilesPerCollection = 10000

// DefaultMaxTextLength is used for CLOB columns that never held a value
const DefaultMaxTextLength = 1

type location struct {
	table  int
	column int
}

// Ledger tracks the large objects of one export. It is not safe for
// concurrent use; an export is single-threaded.
type Ledger struct {
	count         int
	docCollection int
	folder        int
	types         map[location]string
	maxText       map[location]int
}

// New returns an empty ledger positioned at the first document collection
func New() *Ledger {
	return &Ledger{
		docCollection: 1,
		types:         make(map[location]string),
		maxText:       make(map[location]int),
	}
}

// RecordLocationAndType registers a LOB column. Repeated calls for the
// same column keep the first type.
func (l *Ledger) RecordLocationAndType(table, column int, lobType string) {
	key := location{table, column}
	if _, ok := l.types[key]; ok {
		return
	}
	l.types[key] = lobType
}

// LOBType returns the LOB type registered for a column
func (l *Ledger) LOBType(table, column int) (string, bool) {
	t, ok := l.types[location{table, column}]
	return t, ok
}

// RecordLOB counts one more stored LOB, moving to the next document
// collection when the current one is full
func (l *Ledger) RecordLOB() {
	l.count++
	l.folder++
	if l.folder == MaxFilesPerCollection+1 {
		l.docCollection++
		l.folder = 1
	}
}

// DecrementLOBs reverts the last RecordLOB
func (l *Ledger) DecrementLOBs() {
	if l.count == 0 {
		return
	}
	l.count--
	if l.folder == 1 && l.docCollection > 1 {
		l.docCollection--
		l.folder = MaxFilesPerCollection
		return
	}
	l.folder--
}

// UpdateMaxTextLength keeps the longest text seen in a column
func (l *Ledger) UpdateMaxTextLength(table, column, length int) {
	key := location{table, column}
	if current, ok := l.maxText[key]; !ok || length > current {
		l.maxText[key] = length
	}
}

// MaxTextLength returns the longest text seen in a column, or -1
func (l *Ledger) MaxTextLength(table, column int) int {
	if n, ok := l.maxText[location{table, column}]; ok {
		return n
	}
	return -1
}

// Count returns the number of LOBs recorded so far
func (l *Ledger) Count() int {
	return l.count
}

// DocCollection returns the current document collection number
func (l *Ledger) DocCollection() int {
	return l.docCollection
}

// FolderCount returns the number of folders used in the current collection
func (l *Ledger) FolderCount() int {
	return l.folder
}

// ColumnType returns the type a LOB column takes in the archive's
// descriptive metadata: a bounded national varchar for text, an integer
// document id for binaries
func (l *Ledger) ColumnType(table, column int, characterLOB bool) string {
	if !characterLOB {
		return "INTEGER"
	}
	n := l.MaxTextLength(table, column)
	if n <= 0 {
		n = DefaultMaxTextLength
	}
	return fmt.Sprintf("NATIONAL CHARACTER VARYING(%d)", n)
}
