package utils

// Label 用于解释推荐结果：值与产生它的阶段。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / score / rule ...
}

// MergeLabel 合并同名 Label，保留历史：Value 以 '|' 累积，Source 以 ',' 累积。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	case existing.Source == incoming.Source:
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
