// Package typing implements BUSY's built-in Product class hierarchy and the
// isa() polymorphic type test (spec §4.4). The hierarchy is a closed set
// (§9 "Dynamic dispatch": a tagged-variant record with a static dispatch
// table, not open polymorphism), rooted at Product.
package typing

// Class is one of the built-in BUSY classes.
type Class string

const (
	Product    Class = "Product"
	Executable Class = "Executable"
	Library    Class = "Library"
	Dll        Class = "Dll"
	Copy       Class = "Copy"
	Moc        Class = "Moc"
	Rcc        Class = "Rcc"
	Uic        Class = "Uic"
	Script     Class = "Script"
	Config     Class = "Config"
)

// parents maps each built-in class to its direct superclass; Product has no
// superclass (it is the root), and Config sits outside the Product tree.
var parents = map[Class]Class{
	Executable: Product,
	Library:    Product,
	Dll:        Product,
	Copy:       Product,
	Moc:        Product,
	Rcc:        Product,
	Uic:        Product,
	Script:     Product,
}

// builtin is the set of classes the generator knows how to dispatch on.
var builtin = map[Class]bool{
	Product: true, Executable: true, Library: true, Dll: true, Copy: true,
	Moc: true, Rcc: true, Uic: true, Script: true, Config: true,
}

// IsBuiltin reports whether c names one of the closed built-in classes.
func IsBuiltin(c Class) bool { return builtin[Class(c)] }

// Isa reports whether instance class b equals class a, or transitively
// extends it. isa(A, B) in spec terms is Isa(B, A): "B is-a A".
func Isa(instance, ancestor Class) bool {
	if instance == ancestor {
		return true
	}
	cur := instance
	for {
		parent, ok := parents[cur]
		if !ok {
			return false
		}
		if parent == ancestor {
			return true
		}
		cur = parent
	}
}

// NearestBuiltin resolves a (possibly user-defined) subclass name to its
// nearest built-in ancestor for operation-emission purposes (spec §4.4:
// "User code MAY define further subclasses; the generator treats them as
// their nearest built-in ancestor"). userParents maps a user subclass name
// to its declared superclass (built-in or another user subclass).
func NearestBuiltin(name Class, userParents map[Class]Class) (Class, bool) {
	cur := name
	seen := map[Class]bool{}
	for {
		if IsBuiltin(cur) {
			return cur, true
		}
		if seen[cur] {
			return "", false // cycle in user class hierarchy
		}
		seen[cur] = true
		parent, ok := userParents[cur]
		if !ok {
			return "", false
		}
		cur = parent
	}
}
