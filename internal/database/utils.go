package database

func PointerInt64(i int64) *int64 {
	return &i
}

func PointerString(s string) *string {
	return &s
}

func Convert2JsonbArray(arr []string) JSONBArray {
	results := make(JSONBArray, 0, len(arr))
	for _, ele := range arr {
		results = append(results, ele)
	}
	return results
}
