package scraper

// Facebook page DOM selectors.
// These are isolated here because Facebook changes their DOM frequently.
// Update these when scraping breaks.

const (
	// PostArticle matches every post container; the first one is the newest.
	PostArticle = `div[role="article"]`

	// PostMessage holds the post text inside an article.
	PostMessage = `div[data-ad-comet-preview="message"]`

	// PostImage matches photos served from the media CDN.
	PostImage = `img[src*="scontent"]`
)

// ExpandLabels are the texts of the "show more" control, per page locale.
var ExpandLabels = []string{"Ver más", "See more"}

// ExpandLatestJS counts post containers and clicks the expansion control of
// the first one. Button roles are tried before plain text nodes so a post
// body that happens to start with the label is not mistaken for the control.
// Returns {count, expanded}.
var ExpandLatestJS = `
	(function() {
		const articles = document.querySelectorAll('` + PostArticle + `');
		if (articles.length === 0) {
			return { count: 0, expanded: false };
		}
		const labels = ` + jsStringArray(ExpandLabels) + `;
		const post = articles[0];
		const isLabel = t => labels.some(l => t === l);
		const endsWithLabel = t => labels.some(l => t.endsWith(l));

		for (const el of post.querySelectorAll('[role="button"]')) {
			if (isLabel(el.textContent.trim())) {
				el.click();
				return { count: articles.length, expanded: true };
			}
		}
		for (const el of post.querySelectorAll('div, span')) {
			const own = Array.from(el.childNodes)
				.filter(n => n.nodeType === Node.TEXT_NODE)
				.map(n => n.textContent)
				.join('')
				.trim();
			if (own !== '' && endsWithLabel(own)) {
				el.click();
				return { count: articles.length, expanded: true };
			}
		}
		return { count: articles.length, expanded: false };
	})()
`

// ReadLatestJS reads the text and image URL of the first post container.
// Returns {found, hasText, text, imageUrl}.
var ReadLatestJS = `
	(function() {
		const article = document.querySelector('` + PostArticle + `');
		if (!article) {
			return { found: false, hasText: false, text: '', imageUrl: '' };
		}
		const message = article.querySelector('` + PostMessage + `');
		const img = article.querySelector('` + PostImage + `');
		return {
			found: true,
			hasText: message !== null,
			text: message ? message.innerText : '',
			imageUrl: img ? (img.getAttribute('src') || '') : ''
		};
	})()
`
