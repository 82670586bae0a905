package interpolate

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// fakerGenerator dispatches a dotted "$faker.<category>.<generator>" path to
// a concrete gofakeit call. Only the generators declared usable by a suite
// author need a home here; unknown paths resolve as unresolved, same as any
// other unresolvable token.
type fakerGenerator struct {
	faker *gofakeit.Faker
}

func newFakerGenerator() *fakerGenerator {
	return &fakerGenerator{faker: gofakeit.New(0)}
}

// Generate resolves path, e.g. "person.name", "internet.email",
// "number.int", "uuid" (spec.md §4.3's $faker.<generator> form).
func (f *fakerGenerator) Generate(path string) (interface{}, bool) {
	switch strings.ToLower(path) {
	case "uuid":
		return f.faker.UUID(), true
	case "person.name", "name":
		return f.faker.Name(), true
	case "person.firstname", "firstname":
		return f.faker.FirstName(), true
	case "person.lastname", "lastname":
		return f.faker.LastName(), true
	case "internet.email", "email":
		return f.faker.Email(), true
	case "internet.username", "username":
		return f.faker.Username(), true
	case "internet.url", "url":
		return f.faker.URL(), true
	case "internet.ipv4", "ipv4":
		return f.faker.IPv4Address(), true
	case "number.int", "number", "int":
		return f.faker.Number(1, 1000000), true
	case "number.float", "float":
		return f.faker.Float32Range(0, 1000), true
	case "phone", "phone.number":
		return f.faker.Phone(), true
	case "address.city", "city":
		return f.faker.City(), true
	case "address.country", "country":
		return f.faker.Country(), true
	case "address.zip", "zip":
		return f.faker.Zip(), true
	case "company", "company.name":
		return f.faker.Company(), true
	case "date", "date.recent":
		return f.faker.Date().Format("2006-01-02"), true
	case "word":
		return f.faker.Word(), true
	case "sentence":
		return f.faker.Sentence(6), true
	case "boolean", "bool":
		return f.faker.Bool(), true
	default:
		return nil, false
	}
}
