package storage

import (
	"maps"
	"sort"
)

// nameLabel is the reserved label every record is indexed under
const nameLabel = "__name__"

// Index maps record labels to record names
type Index struct {
	// record name -> labels
	records map[string]map[string]string
	// Inverted index: label name -> label value -> record names
	labelIndex map[string]map[string][]string
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		records:    make(map[string]map[string]string),
		labelIndex: make(map[string]map[string][]string),
	}
}

// Add indexes a record under its name and labels, replacing any previous
// entry for the same name.
func (idx *Index) Add(name string, labels map[string]string) {
	idx.Remove(name)

	stored := make(map[string]string, len(labels))
	for k, v := range labels {
		stored[k] = v
	}
	idx.records[name] = stored

	idx.addLabel(nameLabel, name, name)
	for k, v := range stored {
		idx.addLabel(k, v, name)
	}
}

func (idx *Index) addLabel(label, value, name string) {
	if idx.labelIndex[label] == nil {
		idx.labelIndex[label] = make(map[string][]string)
	}
	idx.labelIndex[label][value] = append(idx.labelIndex[label][value], name)
}

// Remove drops a record from the index
func (idx *Index) Remove(name string) {
	labels, ok := idx.records[name]
	if !ok {
		return
	}
	delete(idx.records, name)

	idx.removeLabel(nameLabel, name, name)
	for k, v := range labels {
		idx.removeLabel(k, v, name)
	}
}

func (idx *Index) removeLabel(label, value, name string) {
	values := idx.labelIndex[label]
	names := values[value]
	for i, n := range names {
		if n == name {
			names = append(names[:i], names[i+1:]...)
			break
		}
	}

	if len(names) == 0 {
		delete(values, value)
		if len(values) == 0 {
			delete(idx.labelIndex, label)
		}
		return
	}
	values[value] = names
}

// Labels returns a copy of the labels of a record
func (idx *Index) Labels(name string) (map[string]string, bool) {
	labels, ok := idx.records[name]
	if !ok {
		return nil, false
	}
	return maps.Clone(labels), true
}

// Find returns the sorted names of records matching every selector. No
// selectors matches every record.
func (idx *Index) Find(selectors map[string]string) []string {
	if len(selectors) == 0 {
		result := make([]string, 0, len(idx.records))
		for name := range idx.records {
			result = append(result, name)
		}
		sort.Strings(result)
		return result
	}

	var result []string
	first := true

	for label, value := range selectors {
		valueMap, ok := idx.labelIndex[label]
		if !ok {
			return nil
		}

		names, ok := valueMap[value]
		if !ok {
			return nil
		}

		if first {
			result = append([]string(nil), names...)
			sort.Strings(result)
			first = false
		} else {
			result = intersect(result, names)
		}

		if len(result) == 0 {
			return nil
		}
	}

	return result
}

// Count returns the number of indexed records
func (idx *Index) Count() int {
	return len(idx.records)
}

// intersect returns the sorted names present in both a (sorted) and b
func intersect(a, b []string) []string {
	sortedB := append([]string(nil), b...)
	sort.Strings(sortedB)

	result := make([]string, 0)
	i, j := 0, 0

	for i < len(a) && j < len(sortedB) {
		if a[i] < sortedB[j] {
			i++
		} else if a[i] > sortedB[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
