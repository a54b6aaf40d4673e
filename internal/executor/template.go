package executor

import (
	"sort"
	"strings"

	"github.com/unclebandit/leadflow-backend/internal/model"
)

// RenderTemplate replaces each {key} with its value in a single pass, so
// placeholders inside substituted values are left as written.
func RenderTemplate(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// LeadPlaceholders returns the template values available for a lead. A nil
// lead yields no values so placeholders are left untouched.
func LeadPlaceholders(lead *model.Lead) map[string]string {
	if lead == nil {
		return nil
	}
	return map[string]string{
		"business_name": lead.BusinessName,
		"contact_name":  lead.ContactName,
		"city":          lead.City,
		"email":         lead.Email,
		"phone":         lead.Phone,
	}
}
