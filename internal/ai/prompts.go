package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/SpendWise/internal/models"
)

const englishParsePrompt = `You are an expert at parsing transaction data from natural language. The user will provide text describing a financial transaction. Your job is to extract the amount, a clean description, and determine if it's an income or an expense.

Rules:
- If words like "salary", "got", "received", "bonus" are used, it is an income.
- If words like "paid", "for", "spent", "bought" are used, it is an expense.
- The amount will be a number.
- The description should be a concise summary of the item or service.`

const bengaliParsePrompt = `আপনি প্রাকৃতিক ভাষা থেকে লেনদেনের ডেটা পার্স করায় একজন বিশেষজ্ঞ। ব্যবহারকারী একটি আর্থিক লেনদেন বর্ণনা করে পাঠ্য সরবরাহ করবে। আপনার কাজ হলো পরিমাণ, একটি পরিষ্কার বিবরণ বের করা এবং এটি আয় না ব্যয় তা নির্ধারণ করা।

নিয়মাবলী:
- যদি "বেতন", "পেলাম", "গ্রহণ", "বোনাস" এর মতো শব্দ ব্যবহৃত হয়, তবে এটি একটি আয়।
- যদি "পরিশোধ", "জন্য", "খরচ", "কিনলাম" এর মতো শব্দ ব্যবহৃত হয়, তবে এটি একটি ব্যয়।
- পরিমাণটি একটি সংখ্যা হবে।
- বিবরণটি আইটেম বা পরিষেবার একটি সংক্ষিপ্ত সারসংক্ষেপ হওয়া উচিত।`

func parsePrompt(locale string) string {
	if locale == models.LocaleBengali {
		return bengaliParsePrompt
	}
	return englishParsePrompt
}

const suggestCategoryPrompt = `Based on the transaction description, suggest the most appropriate category from the provided list.

Only return a category that is present in the list of available categories.`

const suggestExpensePrompt = `You are an AI assistant helping users categorize their expenses.

Given the following expense description, suggest the most appropriate category from the provided list. Also, provide a confidence level (0 to 1) for your suggestion, where 1 is highest confidence.`

func suggestUserMessage(in SuggestInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction Description: %s\n\nAvailable Categories:\n", in.Description)
	for _, c := range in.Categories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

const queryPromptTemplate = `You are an expert data analyst for a personal finance app. Your task is to analyze a user's natural language query and determine which transactions from their history match the query.

Analyze the user's query for keywords related to dates (e.g., "last week", "in July", "yesterday"), categories, descriptions, amounts (e.g., "over 50", "less than 100"), or transaction types (e.g., "income", "expenses").

Based on your analysis, return a list of transaction IDs that perfectly match the user's request.

Current Date for reference: %s

Return ONLY the list of matching transaction IDs. If no transactions match, return an empty list.`

func queryPrompt(now time.Time) string {
	return fmt.Sprintf(queryPromptTemplate, now.Format("Mon Jan 02 2006"))
}

var parseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"type": {
			"type": "string",
			"enum": ["income", "expense"],
			"description": "The type of the transaction"
		},
		"amount": {
			"type": "number",
			"description": "The numeric amount of the transaction"
		},
		"description": {
			"type": "string",
			"description": "A short description of the transaction"
		}
	},
	"required": ["type", "amount", "description"],
	"additionalProperties": false
}`)

var suggestSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"category": {
			"type": "string",
			"description": "The suggested category for the transaction"
		}
	},
	"required": ["category"],
	"additionalProperties": false
}`)

var suggestionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"category": {
			"type": "string",
			"description": "The suggested category for the expense"
		},
		"confidence": {
			"type": "number",
			"description": "Confidence of the suggestion from 0 to 1"
		}
	},
	"required": ["category", "confidence"],
	"additionalProperties": false
}`)

var querySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"matching_ids": {
			"type": "array",
			"items": {"type": "string"},
			"description": "IDs of the transactions that match the query"
		}
	},
	"required": ["matching_ids"],
	"additionalProperties": false
}`)
