// Package llm implements the model-facing collaborators of the pipeline: the
// interpreter, the coherence validator, the narrator, and the refiner. Each
// role runs its own model settings but shares the OpenRouter credentials.
package llm

// Config selects the model per role. An empty model name inherits the base
// OpenRouter model. The validator runs cold on purpose; creative drift in a
// validator defeats its job.
type Config struct {
	InterpreterModel       string  `split_words:"true"`
	InterpreterTemperature float32 `split_words:"true" default:"0.4"`
	ValidatorModel         string  `split_words:"true"`
	ValidatorTemperature   float32 `split_words:"true" default:"0.0"`
	RefinerModel           string  `split_words:"true"`
	RefinerTemperature     float32 `split_words:"true" default:"0.2"`
	HistoryWindow          int     `split_words:"true" default:"10"`
}
