package httpapi

type SeriesPointResponse struct {
	BucketStart int64   `json:"bucket_start"`
	Count       int     `json:"count"`
	Value       string  `json:"value"`
	ValueFloat  float64 `json:"value_float"`
	Clamped     bool    `json:"value_clamped,omitempty"`
}

type DimensionResponse struct {
	Dimension string `json:"dimension"`
	Count     int    `json:"count"`
	Value     string `json:"value"`
}

type GroupResponse struct {
	GroupID        string                `json:"group_id"`
	DisplayName    string                `json:"display_name"`
	UniqueCount    int                   `json:"unique_count"`
	SoloCount      int                   `json:"solo_count"`
	GroupSoloCount int                   `json:"group_solo_count"`
	HighValueCount int                   `json:"high_value_count"`
	TotalValue     string                `json:"total_value"`
	TotalValueText string                `json:"total_value_text"`
	Trend          string                `json:"trend"`
	Summary        string                `json:"summary"`
	TimeSeries     []SeriesPointResponse `json:"time_series"`
	Breakdown      []DimensionResponse   `json:"breakdown,omitempty"`
}

type SummaryResponse struct {
	GrandTotalCount      int    `json:"grand_total_count"`
	GrandUniqueFactCount int    `json:"grand_unique_count"`
	GrandTotalValue      string `json:"grand_total_value"`
	GrandTotalValueText  string `json:"grand_total_value_text"`
	TopPerformer         string `json:"top_performer,omitempty"`
	TopMetric            string `json:"top_metric"`
}

type WarningResponse struct {
	FactKey string `json:"fact_key"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

type StatsResponse struct {
	Report      string            `json:"report"`
	From        int64             `json:"from"`
	To          int64             `json:"to"`
	Granularity string            `json:"granularity"`
	Cached      bool              `json:"cached"`
	RunID       string            `json:"run_id,omitempty"`
	Groups      []GroupResponse   `json:"groups"`
	Summary     SummaryResponse   `json:"summary"`
	Warnings    []WarningResponse `json:"warnings,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
