package form

import (
	"fmt"
	"reflect"
	"testing"
)

// newTestBuilder mints predictable ids: e1, e2, …
func newTestBuilder() *Builder {
	b := NewBuilder(DefaultCatalog())
	n := 0
	b.NewID = func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
	return b
}

func orders(s *Schema) []int {
	out := make([]int, len(s.Elements))
	for i, e := range s.Elements {
		out[i] = e.Order
	}
	return out
}

func ids(s *Schema) []string {
	out := make([]string, len(s.Elements))
	for i, e := range s.Elements {
		out[i] = e.ID
	}
	return out
}

func TestAddElementAppendsInOrder(t *testing.T) {
	b := newTestBuilder()
	var s Schema

	if _, err := b.AddElement(&s, TypeText); err != nil {
		t.Fatalf("add text: %v", err)
	}
	if _, err := b.AddElement(&s, TypeEmail); err != nil {
		t.Fatalf("add email: %v", err)
	}

	if len(s.Elements) != 2 {
		t.Fatalf("len = %d, want 2", len(s.Elements))
	}
	if got := orders(&s); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("orders = %v", got)
	}
	if s.Elements[0].Type != TypeText || s.Elements[1].Type != TypeEmail {
		t.Fatalf("types = %s, %s", s.Elements[0].Type, s.Elements[1].Type)
	}
}

func TestAddElementUnknownType(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	if _, err := b.AddElement(&s, "carousel"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Elements) != 0 {
		t.Fatal("schema changed on failed add")
	}
}

func TestToggleValidationRuleTwiceRestoresRules(t *testing.T) {
	b := newTestBuilder()
	for _, typ := range ElementTypes {
		var s Schema
		e, _ := b.AddElement(&s, typ)
		for _, def := range b.Catalog.RulesFor(typ) {
			before := append([]string(nil), b.FindElement(&s, e.ID).Validation.Rules...)

			if !b.ToggleValidationRule(&s, e.ID, def.Key) || !b.ToggleValidationRule(&s, e.ID, def.Key) {
				t.Fatalf("%s/%s: toggle reported no-op", typ, def.Key)
			}
			after := b.FindElement(&s, e.ID).Validation.Rules
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("%s/%s: rules %v → %v", typ, def.Key, before, after)
			}
		}
	}
}

func TestToggleOffDropsValueAndMessage(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeText)

	b.ToggleValidationRule(&s, e.ID, "max")
	if !b.UpdateValidationRuleValue(&s, e.ID, "max", "50") {
		t.Fatal("set value failed")
	}
	if !b.UpdateValidationMessage(&s, e.ID, "max", "Too long") {
		t.Fatal("set message failed")
	}

	b.ToggleValidationRule(&s, e.ID, "max") // off
	v := b.FindElement(&s, e.ID).Validation
	if _, ok := v.Values["max"]; ok {
		t.Fatal("value survived toggle off")
	}
	if _, ok := v.Messages["max"]; ok {
		t.Fatal("message survived toggle off")
	}

	b.ToggleValidationRule(&s, e.ID, "max") // on again
	v = b.FindElement(&s, e.ID).Validation
	if !v.Has("max") {
		t.Fatal("rule not re-added")
	}
	if _, ok := v.Values["max"]; ok {
		t.Fatal("value resurrected")
	}
	if _, ok := v.Messages["max"]; ok {
		t.Fatal("message resurrected")
	}
}

func TestToggleRefusesRuleOutsideCatalog(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeEmail)
	if b.ToggleValidationRule(&s, e.ID, "image") {
		t.Fatal("image toggled on an email element")
	}
	if len(b.FindElement(&s, e.ID).Validation.Rules) != 0 {
		t.Fatal("rules changed")
	}
}

func TestRuleSettersRequireActiveRule(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeText)

	if b.UpdateValidationRuleValue(&s, e.ID, "max", "5") {
		t.Fatal("value set on inactive rule")
	}
	if b.UpdateValidationMessage(&s, e.ID, "max", "x") {
		t.Fatal("message set on inactive rule")
	}
	b.ToggleValidationRule(&s, e.ID, "required")
	if b.UpdateValidationRuleValue(&s, e.ID, "required", "yes") {
		t.Fatal("value set on value-less rule")
	}
	if !b.UpdateValidationMessage(&s, e.ID, "required", "Needed") {
		t.Fatal("message on active rule refused")
	}
	if !b.UpdateValidationMessage(&s, e.ID, "required", "") {
		t.Fatal("clearing message refused")
	}
	if _, ok := b.FindElement(&s, e.ID).Validation.Messages["required"]; ok {
		t.Fatal("empty message not cleared")
	}
}

func TestUpdateValidationRulesPrunes(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeText)
	b.UpdateValidationRules(&s, e.ID, []string{"required", "min", "max"})
	b.UpdateValidationRuleValue(&s, e.ID, "min", "2")
	b.UpdateValidationRuleValue(&s, e.ID, "max", "9")
	b.UpdateValidationMessage(&s, e.ID, "max", "short please")

	if !b.UpdateValidationRules(&s, e.ID, []string{"min", "min", "bogus", "url"}) {
		t.Fatal("update refused")
	}
	v := b.FindElement(&s, e.ID).Validation
	if !reflect.DeepEqual(v.Rules, []string{"min", "url"}) {
		t.Fatalf("rules = %v", v.Rules)
	}
	if !reflect.DeepEqual(v.Values, map[string]string{"min": "2"}) {
		t.Fatalf("values = %v", v.Values)
	}
	if len(v.Messages) != 0 {
		t.Fatalf("messages = %v", v.Messages)
	}
}

func TestDeleteElementKeepsOrders(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	for i := 0; i < 3; i++ {
		b.AddElement(&s, TypeText)
	}
	if !b.DeleteElement(&s, "e2") {
		t.Fatal("delete failed")
	}
	if got := orders(&s); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("orders after delete = %v", got)
	}
	if b.DeleteElement(&s, "e2") {
		t.Fatal("second delete reported success")
	}
}

func TestReorderElementsByOrderValues(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	for i := 0; i < 4; i++ {
		b.AddElement(&s, TypeText)
	}
	// move the last element to the front
	b.ReorderElements(&s, []int{3, 0, 1, 2})
	if got := ids(&s); !reflect.DeepEqual(got, []string{"e4", "e1", "e2", "e3"}) {
		t.Fatalf("ids = %v", got)
	}
	if got := orders(&s); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("orders = %v", got)
	}
}

func TestReorderElementsAfterDeleteClosesGap(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	for i := 0; i < 3; i++ {
		b.AddElement(&s, TypeText)
	}
	b.DeleteElement(&s, "e1")
	// orders are now [1, 2]; listing only one leaves the other at the end
	b.ReorderElements(&s, []int{2})
	if got := ids(&s); !reflect.DeepEqual(got, []string{"e3", "e2"}) {
		t.Fatalf("ids = %v", got)
	}
	if got := orders(&s); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("orders = %v", got)
	}
}

func TestReorderByID(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	for i := 0; i < 4; i++ {
		b.AddElement(&s, TypeText)
	}
	if !b.ReorderByID(&s, []string{"e3", "e1"}) {
		t.Fatal("ReorderByID reported unknown id")
	}
	if got := ids(&s); !reflect.DeepEqual(got, []string{"e3", "e1", "e2", "e4"}) {
		t.Fatalf("ids = %v", got)
	}
	if got := orders(&s); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("orders = %v", got)
	}
	if b.ReorderByID(&s, []string{"e4", "ghost"}) {
		t.Fatal("unknown id not reported")
	}
	if s.Elements[0].ID != "e4" {
		t.Fatalf("known id not applied: %v", ids(&s))
	}
}

func TestUpdateElementWidth(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeText)
	delete(s.Elements[0].Styles, Tablet)

	if !b.UpdateElementWidth(&s, e.ID, Tablet, "half") {
		t.Fatal("width update refused")
	}
	st := b.FindElement(&s, e.ID).Styles[Tablet]
	if st.Width != "half" || st.FontSize != "" {
		t.Fatalf("tablet style = %+v", st)
	}
	if b.UpdateElementWidth(&s, e.ID, "tv", "half") {
		t.Fatal("unknown breakpoint accepted")
	}
}

func TestMissingElementIsNoop(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	b.AddElement(&s, TypeText)
	snapshot := s.Clone()

	if b.DeleteElement(&s, "nope") ||
		b.UpdateElementWidth(&s, "nope", Desktop, "half") ||
		b.ToggleValidationRule(&s, "nope", "required") ||
		b.UpdateValidationRuleValue(&s, "nope", "max", "1") ||
		b.UpdateValidationMessage(&s, "nope", "required", "x") ||
		b.UpdateValidationRules(&s, "nope", []string{"required"}) {
		t.Fatal("mutation on missing element reported success")
	}
	if ok, err := b.UpdateProperties(&s, "nope", Properties{Label: "x"}); ok || err != nil {
		t.Fatalf("UpdateProperties = %v, %v", ok, err)
	}
	if b.FindElement(&s, "nope") != nil || b.FindElementIndex(&s, "nope") != -1 {
		t.Fatal("lookup found a missing element")
	}
	if !reflect.DeepEqual(snapshot, s) {
		t.Fatal("schema changed")
	}
}

func TestUpdatePropertiesValidates(t *testing.T) {
	b := newTestBuilder()
	var s Schema
	e, _ := b.AddElement(&s, TypeText)

	ok, err := b.UpdateProperties(&s, e.ID, Properties{Label: "Name", Options: []Option{{"a", "a"}}})
	if ok || err == nil {
		t.Fatalf("invalid properties accepted: %v, %v", ok, err)
	}
	ok, err = b.UpdateProperties(&s, e.ID, Properties{Label: "Name"})
	if !ok || err != nil {
		t.Fatalf("valid properties refused: %v, %v", ok, err)
	}
	if FieldName(*b.FindElement(&s, e.ID)) != "name" {
		t.Fatal("label not applied")
	}
}
