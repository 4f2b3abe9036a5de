package agent

const extractionSystem = "You are a K-beauty trend researcher. Analyze the content and return only valid JSON."

const extractionPrompt = `You are a K-beauty trend researcher analyzing social media and blog content to identify emerging trends.

Evaluate each candidate trend by relevance to the K-beauty market, growth potential, consumer interest and innovation level.
Merge posts that describe the same phenomenon into one trend.

Return JSON only, no markdown, in exactly this shape:
{
  "trends": [
    {
      "title": "short trend name",
      "description": "two or three sentences describing the trend and the evidence",
      "category": "ingredient | product_type | consumer_behavior | market_trend | technology",
      "business_impact": "high | medium | low",
      "time_to_market": "immediate | short_term | medium_term | long_term",
      "keywords": ["keyword1", "keyword2"],
      "source_post_ids": ["ids of the posts that support this trend"]
    }
  ]
}
Return {"trends": []} when the content shows no trend.

Content to analyze:
%s`

const synthesisSystem = "You are a K-beauty market analyst. Analyze the trends and return only valid JSON."

const synthesisPrompt = `You are a K-beauty market analyst synthesizing trend data into actionable insights for a brand team.
%d posts were collected today and %d were relevant. The trends below are already ranked by priority.

For every trend in the priority list explain why it matters now and list concrete action items.
Identify market opportunities and risk factors, each tied to one trend by its id.

Return JSON only, no markdown, in exactly this shape:
{
  "executive_summary": "one paragraph",
  "trend_summary": "two sentences summarizing the overall trend landscape",
  "key_insights": ["insight"],
  "actionable_recommendations": ["recommendation"],
  "market_outlook": "one paragraph",
  "priority_trends": [{"trend_id": "trend_001", "rationale": "why it matters", "action_items": ["action"]}],
  "market_opportunities": [{"trend_id": "trend_001", "title": "opportunity", "description": "", "potential_value": "", "time_horizon": "", "impact": "high | medium | low", "action_items": ["action"]}],
  "risk_factors": [{"trend_id": "trend_001", "title": "risk", "description": "", "severity": "high | medium | low", "mitigation_strategies": ["strategy"]}]
}

Priority list:
%s

Trend analysis:
%s`

const classifierSystem = "You classify content relevance and return only valid JSON."

const classifierPrompt = `Is the following post about Korean beauty, skincare, cosmetics or the K-beauty market?
Answer with JSON only: {"relevant": true} or {"relevant": false}. Use {"relevant": null} if you cannot tell.

Title: %s
Content: %s`
