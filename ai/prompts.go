package ai

// ============================================================================
// SYSTEM PROMPTS
// ============================================================================

const AssistantPrompt = `You are a helpful cybersecurity assistant specializing in phishing detection and online safety. Your role is to:

1. Answer questions about phishing, scams, malware, and online security
2. Provide practical, actionable advice in simple language
3. Be concise but thorough (2-4 paragraphs max)
4. Use bullet points for lists
5. Be encouraging and supportive, not alarmist

Key topics you help with:
- Identifying phishing emails and websites
- Verifying website authenticity
- Password security best practices
- What to do if scammed/hacked
- Social engineering tactics
- Safe browsing habits
- Two-factor authentication
- Email security (SPF, DKIM, DMARC)
- Common red flags in suspicious messages

Always be helpful, clear, and focus on education over fear.`

const ExplanationPrompt = `You are a cybersecurity expert explaining phishing detection results to non-technical users. Be clear, concise, and educational. Keep responses under 150 words.`

// ============================================================================
// CLASSIFIER PROMPTS
// ============================================================================

const VisionPrompt = `You are a cybersecurity expert analyzing a screenshot for phishing detection. Analyze this image and provide:

1. **Extracted Text**: All visible text in the image (word-for-word)
2. **Visual Elements**: Describe login forms, input fields, buttons, logos, colors
3. **Brand Detection**: Identify any company/brand logos or names (PayPal, Google, Bank names, etc)
4. **Suspicious Indicators**:
   - Urgency language ("act now", "suspended", "verify immediately")
   - Requests for sensitive data (SSN, credit card, password, CVV, PIN)
   - Typosquatting in URLs or domains
   - Poor design quality
   - Mismatched branding
5. **Risk Assessment**: Rate 0-100 (0=safe, 100=definite phishing)

Respond in this JSON format:
{
  "extractedText": "full text here",
  "hasLoginForm": true/false,
  "detectedBrands": ["Brand1", "Brand2"],
  "inputFields": ["email", "password", "ssn", "credit card"],
  "suspiciousElements": ["urgent language", "requests SSN"],
  "riskScore": 85,
  "reasoning": "explanation here"
}`

// EmailPromptTemplate takes sender, subject and body.
const EmailPromptTemplate = `You are a cybersecurity expert analyzing an email for phishing indicators.

Sender: %s
Subject: %s
Email Content:
%s

Analyze this email and provide:
1. Risk score (0-100)
2. List of specific threats found
3. Brief analysis (2-3 sentences)

Respond in JSON format:
{
  "riskScore": 75,
  "threats": ["Urgency tactics", "Requests personal info"],
  "analysis": "This email shows typical phishing characteristics..."
}`

// ============================================================================
// ASSISTANT TEXT
// ============================================================================

const AssistantGreeting = "👋 Hi! I'm your security assistant. Ask me anything about phishing, scams, suspicious links or staying safe online."

// fallbackTopic is a canned answer used when no model is reachable.
type fallbackTopic struct {
	// all of the word groups must match; each group matches if any word does
	match [][]string
	reply string
}

var fallbackTopics = []fallbackTopic{
	{
		match: [][]string{{"phishing"}, {"sign", "spot", "identify"}},
		reply: `**Common Phishing Signs:**

🚩 **Red Flags to Watch For:**
• Urgent language ("Act now!", "Account suspended!")
• Requests for passwords, SSN, credit card info
• Suspicious sender email (slight misspellings)
• Generic greetings ("Dear User" instead of your name)
• Mismatched URLs (hover to check before clicking)
• Poor grammar and spelling errors
• Unexpected attachments or links

**What to Do:**
✓ Verify sender through official channels
✓ Check URL carefully before entering info
✓ Never click links in suspicious emails
✓ Contact the company directly if unsure

Stay vigilant! 🛡️`,
	},
	{
		match: [][]string{{"verify", "check", "website", "safe"}},
		reply: `**How to Verify a Website is Safe:**

🔍 **Check These:**
• **HTTPS Lock Icon:** Ensure URL starts with https://
• **Domain Name:** Look for misspellings (g00gle.com vs google.com)
• **Contact Info:** Legitimate sites have clear contact details
• **Professional Design:** Poor quality = red flag
• **Trust Seals:** Look for security badges (but verify them!)

🛠️ **Use Tools:**
• Google Safe Browsing status
• WHOIS lookup for domain age
• Check reviews and reputation
• Use our phishing scanner!

**Pro Tip:** If something feels off, trust your instincts and leave the site immediately.`,
	},
	{
		match: [][]string{{"clicked", "accident"}},
		reply: `**What to Do After Clicking a Phishing Link:**

⚡ **Act Quickly:**

1. **Disconnect:** Turn off Wi-Fi/data immediately
2. **Don't Enter Info:** If you haven't entered data yet, you're likely safe
3. **Change Passwords:** Update passwords for affected accounts
4. **Scan for Malware:** Run antivirus scan
5. **Enable 2FA:** Add two-factor authentication
6. **Monitor Accounts:** Watch for suspicious activity
7. **Report It:** Alert your bank/service provider

**If You Entered Credentials:**
• Change passwords IMMEDIATELY
• Contact your bank if financial info was shared
• File a report with relevant authorities

**Prevention:** Always hover over links before clicking to preview the URL.`,
	},
	{
		match: [][]string{{"password"}},
		reply: `**Password Security Best Practices:**

🔐 **Strong Password Tips:**
• **Length:** At least 12-16 characters
• **Complexity:** Mix uppercase, lowercase, numbers, symbols
• **Unique:** Different password for each account
• **Avoid:** Dictionary words, personal info, patterns

**Password Manager Recommended:**
Use tools like Bitwarden, 1Password, or LastPass to generate and store complex passwords securely.

**Two-Factor Authentication (2FA):**
Always enable 2FA! Even if password is stolen, hackers can't access your account without the second factor.

**Never Share Passwords:**
Legitimate companies will NEVER ask for your password via email, phone, or text.`,
	},
	{
		match: [][]string{{"email"}},
		reply: `**Email Security Tips:**

📧 **Stay Safe:**
• **Verify Sender:** Check the actual email address, not just display name
• **Hover Before Clicking:** Preview links before clicking
• **Beware Attachments:** Don't open unexpected files
• **Check for Urgency:** Scammers create fake urgency
• **Look for Personalization:** Generic greetings are red flags

**Technical Checks:**
• SPF/DKIM/DMARC records (for advanced users)
• Domain reputation lookup
• Email header analysis

**When in Doubt:** Contact the sender through official channels (not by replying to the suspicious email).`,
	},
}

const fallbackDefault = `I'm here to help with cybersecurity questions! I can assist with:

🛡️ **Security Topics:**
• Identifying phishing emails and websites
• Verifying if a website is safe
• Password security best practices
• What to do if you've been scammed
• Safe browsing habits
• Two-factor authentication
• Email security

**Ask me specific questions like:**
• "What are signs of a phishing email?"
• "How do I verify a website is legitimate?"
• "I clicked a suspicious link, what should I do?"
• "How to create a strong password?"`
