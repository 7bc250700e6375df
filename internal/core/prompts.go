package core

import "fmt"

// LanguageName maps the UI language code to the name used in prompts.
func LanguageName(code string) string {
	switch code {
	case "ml":
		return "Malayalam"
	case "hi":
		return "Hindi"
	default:
		return "English"
	}
}

func chatSystemPrompt(language string) string {
	return `You are an expert agricultural assistant specialized in Kerala farming practices. Provide practical, actionable advice for farmers about crops, pests, diseases, fertilizers, and farming techniques. Keep responses concise and helpful.

Language: ` + LanguageName(language) + `
Context: Kerala agricultural practices, tropical climate, monsoon seasons
Focus: Practical solutions, specific recommendations, local context

Always include:
- Specific treatment recommendations with dosages
- Best timing for application
- Preventive measures
- Local availability considerations`
}

const diseaseUserPrompt = "Please analyze this plant image for diseases or health issues."

func diseaseSystemPrompt(language string) string {
	return `You are an expert plant pathologist specializing in Kerala agricultural diseases. Analyze the plant image and provide:

1. Disease identification (if any)
2. Confidence level (0-100%)
3. Severity assessment (low/medium/high)
4. Specific treatment recommendations with dosages
5. Preventive measures

Language: ` + LanguageName(language) + `
Context: Kerala tropical climate, common crops (rice, coconut, banana, pepper, rubber, spices)
Focus: Practical, actionable treatment advice

Format your response as JSON with keys: disease, confidence, severity, treatment, prevention`
}

// diseaseReportPrompt is used when the caller reads the analysis as a stream.
func diseaseReportPrompt(language string) string {
	return `You are an expert plant pathologist specializing in Kerala agricultural diseases. Analyze the plant image and write a short report in Markdown with these sections:

## Diagnosis
## Confidence
## Severity
## Treatment
## Prevention

Language: ` + LanguageName(language) + `
Context: Kerala tropical climate, common crops (rice, coconut, banana, pepper, rubber, spices)
Focus: Practical, actionable treatment advice with dosages`
}

func riskSystemPrompt(in RiskInput) string {
	return fmt.Sprintf(`You are an expert agricultural risk analyst for Kerala farming. Analyze the provided crop and environmental conditions to predict farming risks and provide recommendations.

Parameters:
- Crop: %s
- Temperature: %s°C
- Humidity: %s%%
- pH Level: %s
- Season: %s
- Location: %s

Language: %s
Context: Kerala climate, monsoon patterns, local pests and diseases

Provide risk assessment for:
1. Overall risk level (low/medium/high)
2. Weather-related risks
3. Disease susceptibility 
4. Soil condition risks
5. Specific actionable recommendations

Format as JSON with keys: overallRisk, weatherRisk, diseaseRisk, soilRisk, recommendations (array), confidence`,
		in.Crop, in.Temperature, in.Humidity, in.PH, in.Season, in.Location, LanguageName(in.Language))
}

func riskUserPrompt(crop string) string {
	return fmt.Sprintf("Analyze risk factors for %s cultivation with the given environmental conditions.", crop)
}

func withAdvisoryContext(advice, query string) string {
	if advice == "" {
		return query
	}
	return fmt.Sprintf("Relevant Kerala agricultural advisories:\n\n--- CONTEXT START ---\n%s\n--- CONTEXT END ---\n\nFarmer's question: %s", advice, query)
}
