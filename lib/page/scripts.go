package page

import (
	"encoding/json"
	"fmt"
)

// Page scripts take their arguments as a JSON object bound to p; selectors
// and text are never spliced into the source.
func script(body string, args any) (string, error) {
	if args == nil {
		args = struct{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal script args: %w", err)
	}
	return "(function(p){" + body + "})(" + string(data) + ")", nil
}

const visibleFn = `const visible = el => !!el && el.isConnected && el.getClientRects().length > 0;`

const sampleJS = visibleFn + `
const anyVisible = sel => sel ? Array.from(document.querySelectorAll(sel)).some(visible) : false;
if (!window.__aibridgeDoc) {
  window.__aibridgeDoc = Date.now().toString(36) + Math.random().toString(36).slice(2);
}
const words = p.runningWords || [];
const text = words.length && document.body ? document.body.innerText : '';
const images = p.imageSelector ? Array.from(document.querySelectorAll(p.imageSelector))
  .filter(img => img.isConnected && img.complete && img.naturalWidth > 0).length : 0;
return {
  url: location.href,
  title: document.title,
  documentId: window.__aibridgeDoc,
  stopVisible: anyVisible(p.stopSelector),
  runningText: words.some(w => text.includes(w)),
  loadingVisible: anyVisible(p.loadingSelector),
  imageCount: images,
};`

const pageTextJS = `return document.body ? document.body.innerText : '';`

const fillJS = `
const el = document.querySelector(p.selector);
if (!el) return false;
if (el instanceof HTMLTextAreaElement || el instanceof HTMLInputElement) {
  const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  Object.getOwnPropertyDescriptor(proto, 'value').set.call(el, p.text);
  el.dispatchEvent(new Event('input', { bubbles: true }));
} else if (el.isContentEditable) {
  el.textContent = p.text;
  el.dispatchEvent(new InputEvent('input', { bubbles: true }));
} else {
  return false;
}
el.focus();
return true;`

const buttonsJS = visibleFn + `
return Array.from(document.querySelectorAll(p.selector)).map((b, i) => ({
  index: i,
  disabled: !!b.disabled,
  visible: visible(b),
  testId: (b.dataset && b.dataset.testid) || '',
  id: b.id || '',
  ariaLabel: b.getAttribute('aria-label') || '',
}));`

const clickJS = `
const b = document.querySelectorAll(p.selector)[p.index];
if (!b) return false;
for (const type of ['mousedown', 'mouseup', 'click']) {
  b.dispatchEvent(new MouseEvent(type, { bubbles: true, cancelable: true, view: window }));
}
return true;`

const enterJS = `
const el = document.querySelector(p.selector);
if (!el) return false;
el.focus();
el.dispatchEvent(new KeyboardEvent('keydown', {
  key: 'Enter', code: 'Enter', keyCode: 13, which: 13, bubbles: true, cancelable: true,
}));
return true;`

const textsJS = `return Array.from(document.querySelectorAll(p.selector)).map(e => e.textContent || '');`

const presenceJS = `return { visible: document.visibilityState === 'visible', focused: document.hasFocus() };`
