package storage

import (
	"reflect"
	"testing"
)

func seedIndex() *Index {
	idx := NewIndex()
	idx.Add("northridge-h1", map[string]string{"event": "northridge", "component": "H1", "station": "SYL"})
	idx.Add("northridge-h2", map[string]string{"event": "northridge", "component": "H2", "station": "SYL"})
	idx.Add("kobe-h1", map[string]string{"event": "kobe", "component": "H1", "station": "KJM"})
	return idx
}

func TestIndexAdd(t *testing.T) {
	idx := seedIndex()

	if idx.Count() != 3 {
		t.Errorf("Expected 3 records, got %d", idx.Count())
	}

	// Re-adding replaces the labels instead of duplicating the record
	idx.Add("kobe-h1", map[string]string{"event": "kobe", "component": "UP"})
	if idx.Count() != 3 {
		t.Errorf("Expected 3 records after re-add, got %d", idx.Count())
	}

	if found := idx.Find(map[string]string{"component": "UP"}); !reflect.DeepEqual(found, []string{"kobe-h1"}) {
		t.Errorf("Expected kobe-h1 under component=UP, got %v", found)
	}
	if found := idx.Find(map[string]string{"station": "KJM"}); found != nil {
		t.Errorf("Expected stale station label to be gone, got %v", found)
	}
}

func TestIndexFind(t *testing.T) {
	idx := seedIndex()

	tests := []struct {
		name      string
		selectors map[string]string
		want      []string
	}{
		{"all", nil, []string{"kobe-h1", "northridge-h1", "northridge-h2"}},
		{"single label", map[string]string{"event": "northridge"}, []string{"northridge-h1", "northridge-h2"}},
		{"intersection", map[string]string{"event": "northridge", "component": "H1"}, []string{"northridge-h1"}},
		{"by name", map[string]string{nameLabel: "kobe-h1"}, []string{"kobe-h1"}},
		{"unknown label", map[string]string{"network": "CI"}, nil},
		{"unknown value", map[string]string{"event": "loma-prieta"}, nil},
		{"empty intersection", map[string]string{"event": "kobe", "component": "H2"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := idx.Find(tt.selectors)
			if len(tt.want) == 0 {
				if len(found) != 0 {
					t.Errorf("Expected no matches, got %v", found)
				}
				return
			}
			if !reflect.DeepEqual(found, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, found)
			}
		})
	}
}

func TestIndexRemove(t *testing.T) {
	idx := seedIndex()

	idx.Remove("northridge-h1")
	idx.Remove("missing")

	if idx.Count() != 2 {
		t.Errorf("Expected 2 records, got %d", idx.Count())
	}
	if _, ok := idx.Labels("northridge-h1"); ok {
		t.Error("Expected northridge-h1 labels to be removed")
	}

	found := idx.Find(map[string]string{"component": "H1"})
	if !reflect.DeepEqual(found, []string{"kobe-h1"}) {
		t.Errorf("Expected only kobe-h1 under H1, got %v", found)
	}

	idx.Remove("kobe-h1")
	if found := idx.Find(map[string]string{"component": "H1"}); found != nil {
		t.Errorf("Expected no H1 records, got %v", found)
	}
}

func TestIndexLabelsAreCopied(t *testing.T) {
	idx := NewIndex()
	labels := map[string]string{"station": "SYL"}
	idx.Add("rec", labels)

	labels["station"] = "changed"

	stored, ok := idx.Labels("rec")
	if !ok || stored["station"] != "SYL" {
		t.Errorf("Expected stored label SYL, got %v", stored)
	}
}

func TestIndexLabelsReturnsCopy(t *testing.T) {
	idx := seedIndex()

	labels, ok := idx.Labels("kobe-h1")
	if !ok {
		t.Fatal("Expected labels for kobe-h1")
	}
	labels["event"] = "changed"

	if found := idx.Find(map[string]string{"event": "kobe"}); len(found) == 0 {
		t.Error("Expected index to be unaffected by mutating returned labels")
	}
	again, _ := idx.Labels("kobe-h1")
	if again["event"] != "kobe" {
		t.Errorf("Expected stored label kobe, got %v", again)
	}
}
