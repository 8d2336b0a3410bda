package domain

// ConditionAvailability reports whether enough cross-population data exists
// for a condition to justify the optimised model. Computed fresh on every
// query; the underlying data grows over time and must be re-evaluated.
type ConditionAvailability struct {
	Available bool   `json:"available"`
	Days      int    `json:"days"`
	Message   string `json:"message"`
}

// LinearModel is a fitted least-squares line over a metric series indexed by
// observation number, together with the statistics needed for prediction
// intervals.
type LinearModel struct {
	Slope          float64 `json:"slope"`
	Intercept      float64 `json:"intercept"`
	N              int     `json:"n"`
	MeanX          float64 `json:"meanX"`
	SumSqDevX      float64 `json:"sumSqDevX"`
	ResidualStdErr float64 `json:"residualStdErr"`
}

// PolynomialModel is a fitted polynomial with coefficients in ascending
// degree order.
type PolynomialModel struct {
	Degree         int       `json:"degree"`
	Coefficients   []float64 `json:"coefficients"`
	N              int       `json:"n"`
	MeanX          float64   `json:"meanX"`
	SumSqDevX      float64   `json:"sumSqDevX"`
	ResidualStdErr float64   `json:"residualStdErr"`
}

// ARIMAModel holds fitted ARIMA(p,d,q) parameters plus the series tail state
// required to roll the recursion forward from the last observation.
type ARIMAModel struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`

	AR        []float64 `json:"ar"`
	MA        []float64 `json:"ma"`
	Intercept float64   `json:"intercept"`

	// LastValues holds the trailing p values of the differenced series,
	// LastResiduals the trailing q residuals, and IntegrationTails the final
	// value at each differencing level (innermost first) used to undo the
	// differencing when forecasting.
	LastValues       []float64 `json:"lastValues"`
	LastResiduals    []float64 `json:"lastResiduals"`
	IntegrationTails []float64 `json:"integrationTails"`
}

// RegressionArtifact is the fitted model state for one metric over one series.
// A variant's presence implies its parameters are valid for forecasting; no
// partially-fit state is exposed.
type RegressionArtifact struct {
	ModelType  string           `json:"modelType,omitempty"`
	Linear     *LinearModel     `json:"linear,omitempty"`
	Polynomial *PolynomialModel `json:"polynomial,omitempty"`
	ARIMA      *ARIMAModel      `json:"arima,omitempty"`
}

// HasRegression reports whether the artifact carries any usable model.
func (a *RegressionArtifact) HasRegression() bool {
	return a != nil && (a.Linear != nil || a.Polynomial != nil || a.ARIMA != nil)
}

// ForecastPoint is one predicted value for one future calendar day.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ConfidenceBand pairs a forecast date with its lower/upper bounds at the
// fixed confidence level.
type ConfidenceBand struct {
	Date  string  `json:"date"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PredictionResult is the complete output of one forecast invocation. It is
// constructed once, transferred by value across the worker boundary, and
// never mutated afterwards. Confidence may be empty for point-estimate-only
// strategies.
type PredictionResult struct {
	Predictions []ForecastPoint  `json:"predictions"`
	Confidence  []ConfidenceBand `json:"confidence"`
	ModelType   string           `json:"modelType"`
}

// EmptyPredictionResult is returned when no usable regression exists for a
// request. The model type label still follows the usual fallback chain so
// consumers always receive a non-empty label.
func EmptyPredictionResult(modelType string) PredictionResult {
	if modelType == "" {
		modelType = "linear"
	}
	return PredictionResult{
		Predictions: []ForecastPoint{},
		Confidence:  []ConfidenceBand{},
		ModelType:   modelType,
	}
}
