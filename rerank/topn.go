package rerank

// TopN 截取前 n 个物品，返回副本。
// n <= 0 时返回全部物品；n > len(items) 时返回全部物品。
func TopN(items []string, n int) []string {
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, items[:n])
	return out
}
