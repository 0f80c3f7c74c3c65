// Package keypad scans a 4×3 matrix keypad and buffers the decoded keys.
//
// A Scanner sweeps the matrix by driving one row line High at a time and
// sampling the column lines. A key is emitted when its cell changes from Low
// to High between two sweeps; holding a key emits it once. Sweeps are run
// either by a Poller on a fixed interval or by an InterruptHandler when a
// column line sees a rising edge.
package keypad

// Matrix dimensions.
const (
	NumRows = 4
	NumCols = 3
)

// ScanPattern holds the row drive levels for each step of a sweep: row r is
// driven High alone during step r.
var ScanPattern = [NumRows][NumRows]int{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
}

// KeyMap maps a (row, column) cell to the character it emits.
var KeyMap = [NumRows][NumCols]byte{
	{'1', '2', '3'},
	{'4', '5', '6'},
	{'7', '8', '9'},
	{'*', '0', '#'},
}

// MatrixState is the last sampled level of every cell. The zero value means
// no key pressed. Not safe for concurrent use; sweeps are sequential.
type MatrixState [NumRows][NumCols]int

// observe records level for the cell and reports whether it changed.
func (m *MatrixState) observe(row, col, level int) bool {
	if m[row][col] == level {
		return false
	}
	m[row][col] = level
	return true
}

// Held returns the characters of the cells currently sampled High, in scan
// order.
func (m *MatrixState) Held() []byte {
	var keys []byte
	for r := 0; r < NumRows; r++ {
		for c := 0; c < NumCols; c++ {
			if m[r][c] != 0 {
				keys = append(keys, KeyMap[r][c])
			}
		}
	}
	return keys
}
