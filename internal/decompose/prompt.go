package decompose

// planPrompt asks the model for a sub-task list. The single %q verb takes the query.
const planPrompt = `Analyze this complex query from an e-commerce store's support chat and break it down into executable sub-tasks.
Query: %q

Available tools:
- database_query: Query orders, products, customers, analytics.
  parameters: {"query_type": one of "order_lookup", "product_search", "customer_analytics", "order_analytics", "product_analytics", "business_summary", "company_policies", "params": {"order_id": "...", "keywords": ["..."]}}
- calculation: Perform math and statistical analysis.
  parameters: {"operation": one of "basic_math", "statistics", "percentage", "count", "expression": "...", "data": [...], "part": n, "total": n}
- text_processing: Extract keywords, format responses.
  parameters: {"operation": one of "extract_keywords", "extract_entities", "format_response", "summarize", "text": "...", "format_type": "..."}

Return ONLY a JSON array (no other text) of tasks with this structure:
[
  {
    "id": "t1",
    "description": "task description",
    "tool_name": "tool to use",
    "parameters": {"key": "value"},
    "dependencies": ["ids of earlier tasks this task needs"],
    "priority": 1
  }
]

Guidelines:
- Start by extracting entities or keywords from the query with text_processing.
- Results of dependencies are passed to later tasks automatically; leave "data" empty for statistics over fetched data.
- End with a text_processing format_response task.
- Dependencies may only reference ids of tasks in the same array.
- Higher priority runs first among tasks that are ready at the same time.`
