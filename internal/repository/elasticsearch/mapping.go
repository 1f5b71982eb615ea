package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for place
// aggregate documents.
const DefaultIndexName = "dinewise_place_insights"

// buildIndexMapping returns the full JSON mapping for the place insights
// index. review_sentiment and aggregated_tags are arbitrary-keyed maps, so
// they are stored unindexed; review_ids is the searchable projection used to
// locate a review's home document.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "place_id":         { "type": "keyword" },
      "ai_tags":          { "type": "keyword" },
      "review_ids":       { "type": "keyword" },
      "review_sentiment": { "type": "object", "enabled": false },
      "aggregated_tags":  { "type": "object", "enabled": false },
      "version":          { "type": "long" },
      "updated_at":       { "type": "date" }
    }
  }
}`
}
