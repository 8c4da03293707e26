package selection_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/xdump/xdump/pkg/ent/selection"
)

// rels mirrors a small HR schema: employees belong to groups and refer to
// managers and referrers, tickets have employees as authors.
var rels = []selection.Relation{
	{
		Name: "employees_group_id_fkey", Table: "employees",
		Columns: []string{"group_id"}, ForeignTable: "groups",
		ForeignColumns: []string{"id"},
	},
	{
		Name: "employees_manager_id_fkey", Table: "employees",
		Columns: []string{"manager_id"}, ForeignTable: "employees",
		ForeignColumns: []string{"id"},
	},
	{
		Name: "employees_referrer_id_fkey", Table: "employees",
		Columns: []string{"referrer_id"}, ForeignTable: "employees",
		ForeignColumns: []string{"id"},
	},
	{
		Name: "tickets_author_id_fkey", Table: "tickets",
		Columns: []string{"author_id"}, ForeignTable: "employees",
		ForeignColumns: []string{"id"},
	},
}

var _ = Describe("Relation", func() {
	It("detects self-references", func() {
		Expect(rels[0].IsRecursive()).To(BeFalse())
		Expect(rels[1].IsRecursive()).To(BeTrue())
	})

	It("has readable form", func() {
		Expect(rels[3].String()).To(Equal("tickets(author_id) -> employees(id)"))
	})
})

var _ = Describe("Order", func() {
	It("puts referenced tables first", func() {
		res := selection.Order([]string{"tickets", "employees", "groups"}, rels)
		Expect(res).To(Equal([]string{"groups", "employees", "tickets"}))
	})

	It("keeps input order for independent tables", func() {
		res := selection.Order([]string{"b", "a", "c"}, rels)
		Expect(res).To(Equal([]string{"b", "a", "c"}))
	})

	It("ignores tables that are not part of the input", func() {
		res := selection.Order([]string{"tickets", "employees"}, rels)
		Expect(res).To(Equal([]string{"employees", "tickets"}))
	})

	It("survives cycles and duplicates", func() {
		cycle := []selection.Relation{
			{Table: "a", Columns: []string{"b_id"}, ForeignTable: "b", ForeignColumns: []string{"id"}},
			{Table: "b", Columns: []string{"a_id"}, ForeignTable: "a", ForeignColumns: []string{"id"}},
			{Table: "c", Columns: []string{"a_id"}, ForeignTable: "a", ForeignColumns: []string{"id"}},
		}
		res := selection.Order([]string{"c", "a", "b", "a"}, cycle)
		Expect(res).To(Equal([]string{"a", "c", "b"}))
	})
})

var _ = Describe("Plan", func() {
	It("dumps full tables without temporary tables", func() {
		p := selection.New(rels, []string{"groups"}, nil)
		Expect(p.Full).To(Equal([]string{"groups"}))
		Expect(p.Selected()).To(BeEmpty())
		Expect(p.Setup).To(BeEmpty())
		Expect(p.Steps).To(BeEmpty())
		Expect(p.Query("groups")).To(Equal(`SELECT * FROM "groups"`))
	})

	It("selects tables referenced by full tables", func() {
		p := selection.New(rels, []string{"employees"}, nil)
		Expect(p.Related).To(Equal([]string{"groups"}))
		Expect(p.Tables()).To(Equal([]string{"employees", "groups"}))
		Expect(p.Steps).To(HaveLen(1))
		Expect(p.Steps[0]).To(ContainSubstring(`FROM "employees" AS s`))
		Expect(p.Query("groups")).To(Equal(`SELECT * FROM "xdump_groups"`))
	})

	It("follows long relations", func() {
		p := selection.New(rels, nil, []selection.Partial{
			{Table: "tickets", Query: "SELECT * FROM tickets WHERE id = 1;"},
		})
		Expect(p.Partial).To(Equal([]string{"tickets"}))
		Expect(p.Related).To(Equal([]string{"employees", "groups"}))
		Expect(p.Setup).To(HaveLen(4))
		Expect(p.Setup[0]).To(Equal(
			`CREATE TEMP TABLE "xdump_tickets" AS SELECT * FROM "tickets" WHERE 1 = 0`,
		))
		Expect(p.Setup[3]).To(Equal(
			"INSERT INTO \"xdump_tickets\" SELECT * FROM (SELECT * FROM tickets WHERE id = 1\n) AS xdump_partial",
		))
		// all four relations take part
		Expect(p.Steps).To(HaveLen(4))
	})

	It("generates self-referencing steps", func() {
		p := selection.New(rels, nil, []selection.Partial{
			{Table: "employees", Query: "SELECT * FROM employees WHERE id = 2"},
		})
		Expect(p.Steps[1]).To(Equal(`INSERT INTO "xdump_employees"
SELECT * FROM "employees" AS t
WHERE t."id" IN (SELECT s."manager_id" FROM "xdump_employees" AS s WHERE s."manager_id" IS NOT NULL)
  AND t."id" NOT IN (SELECT d."id" FROM "xdump_employees" AS d WHERE d."id" IS NOT NULL)`))
	})

	It("prefers full tables over partial ones", func() {
		p := selection.New(rels, []string{"groups"}, []selection.Partial{
			{Table: "groups", Query: "SELECT * FROM groups WHERE id = 1"},
			{Table: "employees", Query: "SELECT * FROM employees WHERE id = 1"},
		})
		Expect(p.Ignored).To(Equal([]string{"groups"}))
		Expect(p.IsFull("groups")).To(BeTrue())
		Expect(p.Tables()).To(Equal([]string{"groups", "employees"}))
		for _, s := range p.Steps {
			Expect(s).ToNot(ContainSubstring(`INSERT INTO "xdump_groups"`))
		}
	})

	It("handles composite keys", func() {
		comp := []selection.Relation{{
			Table: "lines", Columns: []string{"order_id", "shop_id"},
			ForeignTable: "orders", ForeignColumns: []string{"id", "shop_id"},
		}}
		p := selection.New(comp, []string{"lines"}, nil)
		Expect(p.Steps).To(HaveLen(1))
		Expect(p.Steps[0]).To(ContainSubstring(
			`WHERE (t."id", t."shop_id") IN (SELECT s."order_id", s."shop_id" FROM "lines" AS s`,
		))
	})
})
