package project

// hoisted maps nested v3 sub-records to the flat columns the v4 schema
// declares for them. Inner keys are expected in snake_case already (run
// SnakeKeys first). Unmapped inner keys stay behind in the sub-record and
// end up in overflow.
var hoisted = map[string]map[string]string{
	"payment": {
		"method":       "payment_method",
		"status":       "payment_status",
		"completed_at": "payment_completed_at",
	},
	"orderer": {
		"name":        "orderer_name",
		"contact":     "orderer_contact",
		"customer_id": "customer_id",
	},
	"branch": {
		"id":   "branch_id",
		"name": "branch_name",
	},
	"summary": {
		"total": "total",
	},
}

// Flatten hoists the well-known nested sub-records of an order document
// into their flat column names. A hoisted field never overwrites a value
// already present at the top level.
func Flatten(record map[string]any) map[string]any {
	out := make(map[string]any, len(record)+4)
	for k, v := range record {
		out[k] = v
	}
	for key, mapping := range hoisted {
		sub, ok := out[key].(map[string]any)
		if !ok {
			continue
		}
		rest := make(map[string]any, len(sub))
		for inner, v := range sub {
			flat, mapped := mapping[inner]
			if !mapped {
				rest[inner] = v
				continue
			}
			if _, exists := out[flat]; !exists {
				out[flat] = v
			}
		}
		if len(rest) == 0 {
			delete(out, key)
		} else {
			out[key] = rest
		}
	}
	return out
}
