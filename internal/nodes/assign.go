package nodes

// Assigner rewrites to-one relations into cross-referenced node ids.
type Assigner struct {
	classifier *Classifier
	idGen      IDGenerator
}

// NewAssigner creates an Assigner.
func NewAssigner(c *Classifier, idGen IDGenerator) *Assigner {
	return &Assigner{classifier: c, idGen: idGen}
}

// Assign walks obj and replaces every to-one relation wrapper that carries
// `data.id` with a copy augmented with `id` (the generated node id) and
// `nodeId` (the un-hashed entity key). Collections are left alone. The input
// is never mutated; when nothing was rewritten the same map is returned.
func (a *Assigner) Assign(obj map[string]any) map[string]any {
	out, _ := a.assignObject(obj)
	return out
}

func (a *Assigner) assignObject(obj map[string]any) (map[string]any, bool) {
	var rewritten map[string]any
	for key, value := range obj {
		next, changed := a.assignValue(value)
		if !changed {
			continue
		}
		if rewritten == nil {
			rewritten = make(map[string]any, len(obj))
			for k, v := range obj {
				rewritten[k] = v
			}
		}
		rewritten[key] = next
	}
	if rewritten == nil {
		return obj, false
	}
	return rewritten, true
}

func (a *Assigner) assignValue(v any) (any, bool) {
	shape, entity := a.classifier.Classify(v)
	switch shape {
	case ShapeEntityResponse:
		wrapper := v.(map[string]any)
		remoteID, ok := RemoteID(wrapper)
		if !ok {
			return a.assignObject(wrapper)
		}
		key := EntityKey(entity, remoteID)
		out := make(map[string]any, len(wrapper)+2)
		for k, val := range wrapper {
			out[k] = val
		}
		out["id"] = a.idGen(key)
		out["nodeId"] = key
		return out, true

	case ShapeObject, ShapeCollectionResponse, ShapeFile:
		return a.assignObject(v.(map[string]any))

	case ShapeArray:
		return a.assignArray(v.([]any))
	}
	return v, false
}

func (a *Assigner) assignArray(items []any) ([]any, bool) {
	var out []any
	for i, item := range items {
		next, changed := a.assignValue(item)
		if !changed {
			continue
		}
		if out == nil {
			out = make([]any, len(items))
			copy(out, items)
		}
		out[i] = next
	}
	if out == nil {
		return items, false
	}
	return out, true
}
