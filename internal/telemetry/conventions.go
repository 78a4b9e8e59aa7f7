package telemetry

// Attribute names used on spans and metrics.
const (
	AttrRunID = "trendtags.run.id"

	AttrToolName               = "trendtags.tool.name"
	AttrToolArguments          = "trendtags.tool.arguments"
	AttrToolArgumentsTruncated = "trendtags.tool.arguments.truncated"
	AttrToolSuccess            = "trendtags.tool.result.success"
	AttrToolError              = "trendtags.tool.result.error"

	AttrProviderName     = "provider.name"
	AttrProviderQuery    = "provider.query"
	AttrProviderAttempts = "provider.attempts"

	AttrAggregateQueries = "aggregate.queries"
	AttrAggregateMode    = "aggregate.mode"
	AttrAggregateUnique  = "aggregate.unique_hashtags"

	AttrDispatchWorkers = "dispatch.workers"
	AttrDispatchItems   = "dispatch.items"
	AttrDispatchFailed  = "dispatch.failed"

	AttrCacheHit       = "cache.hit"
	AttrCacheKey       = "cache.key"
	AttrCacheOperation = "cache.operation"

	AttrLLMSystem      = "llm.system"
	AttrLLMModel       = "llm.model"
	AttrLLMRequestType = "llm.request.type"
	AttrLLMTotalTokens = "llm.usage.total_tokens"
)

// Span names
const (
	SpanNameToolExecute    = "trendtags.tool.execute"
	SpanNameAggregate      = "trendtags.aggregate"
	SpanNameProviderInvoke = "provider.invoke"
	SpanNameProviderFetch  = "provider.fetch"
	SpanNameDispatch       = "dispatch.fetch_all"
	SpanNameCacheOp        = "cache"
	SpanNameContentFetch   = "content.fetch"
	SpanNameLLMExecute     = "llm.execute"
)
