package fixture

import "strings"

var abbreviations = map[string]string{
	// Common nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "url": "url", "uri": "url", "ip": "ip", "zip": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"doc": "document", "usr": "user", "emp": "employee",
	"dept": "department", "grp": "group", "cat": "category",
	"loc": "location", "lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "prov": "province", "dist": "district",
	"avg": "average", "lang": "language", "intro": "description",
	"fullname": "name", "shortname": "name", "firstname": "first name", "lastname": "last name",
	"username": "login", "idnumber": "code", "lastip": "ip",

	// Verbs / status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "ord": "order", "seq": "sequence",
	"is": "yesno", "use": "yesno", "flg": "flag", "visible": "yesno", "enabled": "yesno",
}

// commentKeywords maps words found in a field comment to a meaning. The
// first match wins.
var commentKeywords = []struct {
	words   []string
	meaning string
}{
	{[]string{"phone", "mobile"}, "phone"},
	{[]string{"email", "mail"}, "email"},
	{[]string{"address"}, "address"},
	{[]string{"zip", "postal"}, "zipcode"},
	{[]string{"password"}, "password"},
	{[]string{"url", "link"}, "url"},
	{[]string{"name"}, "name"},
	{[]string{"title"}, "title"},
	{[]string{"description", "summary", "content"}, "description"},
	{[]string{"timestamp", "date", "time"}, "date"},
	{[]string{"price", "cost", "amount"}, "price"},
	{[]string{"count", "qty"}, "count"},
	{[]string{"flag", "yes/no", "whether"}, "yesno"},
	{[]string{"country"}, "country"},
	{[]string{"city"}, "city"},
	{[]string{"language"}, "language"},
}

// analyzeMeaning guesses what a column holds, from its comment first and
// then by expanding the abbreviations in its name.
func analyzeMeaning(colName, comment string) string {
	c := strings.ToLower(comment)
	for _, kw := range commentKeywords {
		for _, w := range kw.words {
			if strings.Contains(c, w) {
				return kw.meaning
			}
		}
	}

	parts := strings.Split(strings.ToLower(colName), "_")
	decoded := make([]string, 0, len(parts))
	for _, part := range parts {
		if full, ok := abbreviations[part]; ok {
			decoded = append(decoded, full)
		} else {
			decoded = append(decoded, part)
		}
	}
	return strings.Join(decoded, " ")
}
