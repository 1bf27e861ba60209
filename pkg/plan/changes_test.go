package plan

import (
	"reflect"
	"testing"
)

func TestChangeSet_IsEmpty_True(t *testing.T) {
	if !(&ChangeSet{}).IsEmpty() {
		t.Error("zero-value ChangeSet should be empty")
	}
}

func TestChangeSet_IsEmpty_UnchangedOnly(t *testing.T) {
	c := &ChangeSet{Unchanged: []string{"a.example.com"}}
	if !c.IsEmpty() {
		t.Error("ChangeSet with only Unchanged entries should be empty")
	}
}

func TestChangeSet_IsEmpty_Create(t *testing.T) {
	c := &ChangeSet{Create: []string{"a.example.com"}}
	if c.IsEmpty() {
		t.Error("ChangeSet with Create entries should not be empty")
	}
}

func TestChangeSet_IsEmpty_Delete(t *testing.T) {
	c := &ChangeSet{Delete: []Deletion{{Hostname: "a.example.com", ID: "1"}}}
	if c.IsEmpty() {
		t.Error("ChangeSet with Delete entries should not be empty")
	}
}

func TestChangeSet_DeleteHostnames_Sorted(t *testing.T) {
	c := &ChangeSet{Delete: []Deletion{
		{Hostname: "z.example.com", ID: "3"},
		{Hostname: "a.example.com", ID: "1"},
		{Hostname: "m.example.com", ID: "2"},
	}}
	want := []string{"a.example.com", "m.example.com", "z.example.com"}
	if got := c.DeleteHostnames(); !reflect.DeepEqual(got, want) {
		t.Errorf("DeleteHostnames() = %v, want %v", got, want)
	}
}

func TestChangeSet_Total(t *testing.T) {
	c := &ChangeSet{
		Create:    []string{"a", "b"},
		Delete:    []Deletion{{Hostname: "c", ID: "1"}},
		Unchanged: []string{"d", "e", "f"},
	}
	if got := c.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}
