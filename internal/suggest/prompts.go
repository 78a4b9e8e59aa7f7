package suggest

const keywordPrompt = `You are an expert SEO auditor and content strategist preparing an SEO audit report.
Extract the most important, high-value and SEO-relevant keywords from the content below.

Guidelines:
- Only extract keywords and key phrases that are highly relevant to the main topic and business context.
- Avoid generic, filler or overly broad terms (for example 'data', 'business', 'company').
- Include both single-word and multi-word phrases suitable for hashtags and search optimisation.
- Rank keywords by importance and specificity to the content.
- Output a comma-separated list of 15-20 keywords or key phrases, with no extra text.

Example:
Content: The company specialises in cloud computing, artificial intelligence and cybersecurity solutions for enterprise clients.
Output: cloud computing, artificial intelligence, cybersecurity, enterprise clients, cloud solutions, AI solutions, cybersecurity services, IT security, enterprise technology, digital security, cloud infrastructure, AI for business, enterprise cybersecurity, technology consulting, secure cloud

Content:
%s
Output:`

const hashtagPrompt = `You are an expert SEO auditor and social media strategist preparing a company SEO audit report.
Generate 20 unique, professional, SEO-friendly and currently trending hashtags.

Guidelines:
- Focus on hashtags that are highly relevant to the keywords and page content.
- Hashtags must suit an enterprise context: no slang and no generic tags such as #business or #data.
- Prefer hashtags currently trending in SEO, analytics, automation and digital transformation.
- Each hashtag should be concise and easy to read.
- Output exactly 20 hashtags separated by commas, with no extra text.

Example:
Keywords: Process Automation, Workflow Optimisation
Page Content: This page covers process automation and workflow optimisation for business efficiency.
Output: #ProcessAutomation, #WorkflowOptimisation, #BusinessEfficiency, #AutomationStrategy, #WorkflowAutomation, #ProcessImprovement, #BusinessAutomation, #OperationalExcellence, #AutomationSolutions, #WorkflowManagement, #ProcessOptimisation, #DigitalAutomation, #AutomationTrends, #BusinessProcess, #EfficiencyExperts, #ProcessInnovation, #AutomationConsulting, #WorkflowExperts, #ProcessExcellence, #AutomationForBusiness

Keywords:
%s
Page Content:
%s
Output:`

const selectPrompt = `You are an expert SEO auditor and social media strategist.
Given the following trending hashtags, keywords and company page content, select the 20 most relevant,
currently trending hashtags for a company SEO audit report.
All hashtags must be professional, SEO-friendly and suitable for enterprise use.
Avoid generic, unrelated or overused hashtags.
Return only the hashtags, separated by commas, no extra text.

Trending Hashtags:
%s

Keywords:
%s

Page Content:
%s
`
