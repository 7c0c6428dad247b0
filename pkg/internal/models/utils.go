package models

import jsoniter "github.com/json-iterator/go"

// FitStruct converts between shapes that share a JSON encoding,
// typically a model and the plain map stored in the tree.
func FitStruct(src any, out any) error {
	raw, err := jsoniter.Marshal(src)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(raw, out)
}

// EncodeNode turns a model into the plain value written to the tree.
func EncodeNode(src any) (map[string]any, error) {
	var node map[string]any
	if err := FitStruct(src, &node); err != nil {
		return nil, err
	}
	return node, nil
}
