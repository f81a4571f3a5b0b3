package generative_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8787"

	// API Endpoints
	WarmupEndpoint   = "/v1/trivia/warmup"
	TopicsEndpoint   = "/v1/trivia/topics"
	QuestionEndpoint = "/v1/trivia/question"
	RoastEndpoint    = "/v1/trivia/roast"
	SpeechEndpoint   = "/v1/speech"

	// Headers
	AuthorizationHeader = "Authorization"
	AcceptHeader        = "Accept"
)
