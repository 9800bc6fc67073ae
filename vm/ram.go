package vm

// ---------------------------------------------------------------------------
// AddressTable: named, numbered storage slots
// ---------------------------------------------------------------------------

// AddressTable maps variable names to slot addresses and holds one Value
// per slot. Addresses are dense, assigned in first-use order from 0, and a
// name's address never changes once bound.
type AddressTable struct {
	slots []Value
	names []string // names[addr] is the variable bound to addr
	index map[string]int
}

// Slot describes one cell of the table.
type Slot struct {
	Address int
	Name    string
	Value   Value
}

// NewAddressTable creates an empty table.
func NewAddressTable() *AddressTable {
	return &AddressTable{
		index: make(map[string]int),
	}
}

// Allocate returns the address bound to name, binding a new unset slot if
// name has not been seen before.
func (t *AddressTable) Allocate(name string) int {
	if addr, ok := t.index[name]; ok {
		return addr
	}
	addr := len(t.slots)
	t.slots = append(t.slots, Value{})
	t.names = append(t.names, name)
	t.index[name] = addr
	return addr
}

// Lookup returns the address bound to name without allocating.
func (t *AddressTable) Lookup(name string) (int, bool) {
	addr, ok := t.index[name]
	return addr, ok
}

// Size returns the number of allocated slots.
func (t *AddressTable) Size() int {
	return len(t.slots)
}

// Valid reports whether addr names an allocated slot.
func (t *AddressTable) Valid(addr int) bool {
	return addr >= 0 && addr < len(t.slots)
}

// Read returns the value stored at addr.
func (t *AddressTable) Read(addr int) (Value, error) {
	if !t.Valid(addr) {
		return Value{}, invalidAddress("invalid memory address %d", addr)
	}
	return t.slots[addr], nil
}

// Write stores v at addr, replacing the previous value whatever its kind.
func (t *AddressTable) Write(addr int, v Value) error {
	if !t.Valid(addr) {
		return invalidAddress("invalid memory address %d", addr)
	}
	t.slots[addr] = v
	return nil
}

// ReadName returns the value bound to name.
func (t *AddressTable) ReadName(name string) (Value, error) {
	addr, ok := t.index[name]
	if !ok {
		return Value{}, undefinedName(name)
	}
	return t.slots[addr], nil
}

// Names returns the bound names in address order.
func (t *AddressTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Snapshot returns a copy of every slot in address order.
func (t *AddressTable) Snapshot() []Slot {
	out := make([]Slot, len(t.slots))
	for addr, v := range t.slots {
		out[addr] = Slot{Address: addr, Name: t.names[addr], Value: v}
	}
	return out
}
