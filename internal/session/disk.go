package session

import (
	"fmt"
	"strings"

	"disk-spinner/internal/puzzle"
)

// Side identifies one of the two disks.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// ParseSide accepts "left"/"right" and the short forms "l"/"r".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown disk side %q", s)
}

// Disk is a wheel of six values with a fixed pointer. Rotating it changes
// which value sits under the pointer.
type Disk struct {
	values [puzzle.PoolSize]int
	index  int
}

func newDisk(values [puzzle.PoolSize]int) Disk {
	return Disk{values: values}
}

// Rotate turns the disk by steps positions, negative for counter-clockwise,
// and returns the value now under the pointer.
func (d *Disk) Rotate(steps int) int {
	n := len(d.values)
	d.index = ((d.index+steps)%n + n) % n
	return d.Value()
}

// Value is the number under the pointer.
func (d *Disk) Value() int { return d.values[d.index] }

func (d *Disk) Index() int { return d.index }

func (d *Disk) Values() [puzzle.PoolSize]int { return d.values }

// moveTo points the disk at the first slot holding v.
func (d *Disk) moveTo(v int) bool {
	for i, x := range d.values {
		if x == v {
			d.index = i
			return true
		}
	}
	return false
}

// DiskView is the JSON form of a disk.
type DiskView struct {
	Values   [puzzle.PoolSize]int `json:"values"`
	Index    int                  `json:"index"`
	Selected int                  `json:"selected"`
}

func (d *Disk) view(selected int) DiskView {
	return DiskView{Values: d.values, Index: d.index, Selected: selected}
}
