package util

// StringSet is a set of strings that remembers insertion order.
// It is not safe for concurrent use.
type StringSet struct {
	internal map[string]int
	order    []string
}

func NewStringSet() *StringSet {
	return &StringSet{internal: make(map[string]int)}
}

// Add reports whether str was not already present.
func (set *StringSet) Add(str string) bool {
	if _, ok := set.internal[str]; ok {
		return false
	}
	set.internal[str] = len(set.order)
	set.order = append(set.order, str)
	return true
}

func (set *StringSet) AddAll(itemSlice []string) {
	for _, item := range itemSlice {
		set.Add(item)
	}
}

func (set *StringSet) Has(str string) bool {
	_, ok := set.internal[str]
	return ok
}

func (set *StringSet) Remove(str string) {
	if _, ok := set.internal[str]; !ok {
		return
	}
	delete(set.internal, str)
	order := set.order[:0]
	for _, item := range set.order {
		if item != str {
			set.internal[item] = len(order)
			order = append(order, item)
		}
	}
	set.order = order
}

// ToArray returns the items in insertion order.
func (set *StringSet) ToArray() []string {
	res := make([]string, len(set.order))
	copy(res, set.order)
	return res
}

func (set *StringSet) Size() int {
	return len(set.order)
}

// Dedupe drops repeated and empty strings, keeping first-seen order.
func Dedupe(items []string) []string {
	set := NewStringSet()
	for _, item := range items {
		if item != "" {
			set.Add(item)
		}
	}
	return set.ToArray()
}
