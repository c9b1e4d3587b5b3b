package models

import "testing"

func TestScopeIsGlobal(t *testing.T) {
	store := int64(1)
	section := int64(2)
	tests := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{name: "global", scope: Scope{}, want: true},
		{name: "store", scope: Scope{StoreID: &store}, want: false},
		{name: "section", scope: Scope{StoreID: &store, SectionID: &section}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scope.IsGlobal(); got != tc.want {
				t.Fatalf("IsGlobal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScopeContains(t *testing.T) {
	one, otherOne, two := int64(1), int64(1), int64(2)
	section := int64(7)

	tests := []struct {
		name  string
		scope Scope
		item  Item
		want  bool
	}{
		{name: "global item in global scope", scope: Scope{}, item: Item{}, want: true},
		{name: "store item outside global scope", scope: Scope{}, item: Item{StoreID: &one}, want: false},
		{name: "same store by value", scope: Scope{StoreID: &one}, item: Item{StoreID: &otherOne}, want: true},
		{name: "different store", scope: Scope{StoreID: &one}, item: Item{StoreID: &two}, want: false},
		{name: "sectioned item outside store scope", scope: Scope{StoreID: &one}, item: Item{StoreID: &one, SectionID: &section}, want: false},
		{name: "section scope", scope: Scope{StoreID: &one, SectionID: &section}, item: Item{StoreID: &one, SectionID: &section}, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scope.Contains(&tc.item); got != tc.want {
				t.Fatalf("Contains() = %v, want %v", got, tc.want)
			}
		})
	}
}
