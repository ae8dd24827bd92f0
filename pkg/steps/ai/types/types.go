package types

// ApiType selects the model backend.
type ApiType string

const (
	ApiTypeClaude ApiType = "claude"
	ApiTypeOpenAI ApiType = "openai"
	// ApiTypeFixture replays a scripted YAML conversation instead of calling a provider.
	ApiTypeFixture ApiType = "fixture"
)

func (a ApiType) Valid() bool {
	switch a {
	case ApiTypeClaude, ApiTypeOpenAI, ApiTypeFixture:
		return true
	}
	return false
}
